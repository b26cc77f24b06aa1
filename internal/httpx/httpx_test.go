package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdine/internal/logger"
)

func TestWithLoggingAssignsRequestID(t *testing.T) {
	var seen string
	h := WithLogging(logger.Nop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusConflict, "nope", "item_unavailable", "rid")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "nope", body.Error)
	assert.Equal(t, "item_unavailable", body.Code)
	assert.Equal(t, "rid", body.RequestID)
	assert.NotEmpty(t, body.Timestamp)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Code string `json:"code"`
	}

	tests := []struct {
		name        string
		contentType string
		body        string
		allowEmpty  bool
		want        string
		wantErr     error
		anyErr      bool
	}{
		{name: "valid", contentType: "application/json", body: `{"code":"5"}`, want: "5"},
		{name: "charset param", contentType: "application/json; charset=utf-8", body: `{"code":"7"}`, want: "7"},
		{name: "wrong type", contentType: "text/plain", body: `{"code":"5"}`, wantErr: ErrUnsupportedMediaType},
		{name: "unknown field", contentType: "application/json", body: `{"other":1}`, anyErr: true},
		{name: "empty allowed", contentType: "", body: "", allowEmpty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			var p payload
			err := DecodeJSON(req, &p, tt.allowEmpty)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, p.Code)
			}
		})
	}
}
