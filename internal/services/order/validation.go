package order

import (
	"fmt"
	"strings"
)

const (
	maxTableCodeLength = 200
	maxItemIDLength    = 128
)

// ValidationError reports a malformed request field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	VIP bool `json:"vip"`
}

// SetTableRequest is the body of PUT /sessions/{id}/table
type SetTableRequest struct {
	Code string `json:"code"`
}

// Validate checks the request shape; parsing the code is left to the table
// binding.
func (r *SetTableRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return ValidationError{
			Field:   "code",
			Message: "table code is required",
		}
	}
	if len(r.Code) > maxTableCodeLength {
		return ValidationError{
			Field:   "code",
			Message: fmt.Sprintf("table code must be at most %d characters", maxTableCodeLength),
		}
	}
	return nil
}

// AddItemRequest is the body of POST /sessions/{id}/cart/items
type AddItemRequest struct {
	ItemID string `json:"item_id"`
}

// Validate checks the request shape
func (r *AddItemRequest) Validate() error {
	return validateItemID(r.ItemID)
}

func validateItemID(id string) error {
	if id == "" {
		return ValidationError{
			Field:   "item_id",
			Message: "item id is required",
		}
	}
	if len(id) > maxItemIDLength {
		return ValidationError{
			Field:   "item_id",
			Message: fmt.Sprintf("item id must be at most %d characters", maxItemIDLength),
		}
	}
	return nil
}
