package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Metadata fields usable in OrderBy
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Condition matches documents whose top-level Field equals Value
type Condition struct {
	Field string
	Value any
}

// Query filters and orders a collection snapshot. An empty OrderBy keeps
// creation order.
type Query struct {
	Where      []Condition
	OrderBy    string
	Descending bool
}

// Apply returns the documents in docs that match q, ordered by q
func (q Query) Apply(docs []Document) []Document {
	wants := make([]any, len(q.Where))
	for i, c := range q.Where {
		wants[i] = normalize(c.Value)
	}

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.matches(d, wants) {
			out = append(out, d)
		}
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = FieldCreatedAt
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareBy(out[i], out[j], orderBy)
		if c == 0 {
			c = compareStrings(out[i].ID, out[j].ID)
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

func (q Query) matches(d Document, wants []any) bool {
	if len(q.Where) == 0 {
		return true
	}
	var body map[string]any
	if err := json.Unmarshal(d.Data, &body); err != nil {
		return false
	}
	for i, c := range q.Where {
		if !reflect.DeepEqual(body[c.Field], wants[i]) {
			return false
		}
	}
	return true
}

// normalize round-trips v through JSON so it compares equal to decoded bodies
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func compareBy(a, b Document, field string) int {
	switch field {
	case FieldID:
		return compareStrings(a.ID, b.ID)
	case FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return compareValues(fieldValue(a, field), fieldValue(b, field))
}

func fieldValue(d Document, field string) any {
	var body map[string]any
	if err := json.Unmarshal(d.Data, &body); err != nil {
		return nil
	}
	return body[field]
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return compareStrings(av, bv)
		}
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	if b == nil {
		return 1
	}
	return compareStrings(fmt.Sprint(a), fmt.Sprint(b))
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
