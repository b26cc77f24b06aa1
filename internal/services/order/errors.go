package order

import "errors"

// Ordering errors. Every rejected cart, table or checkout operation returns
// one of these, possibly wrapped.
var (
	ErrPermissionDenied = errors.New("item is reserved for VIP guests")
	ErrInvalidTableCode = errors.New("invalid table code")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrSubmissionFailed = errors.New("order submission failed")
	ErrInvalidOrder     = errors.New("order not found")
	ErrTableUnbound     = errors.New("no table bound to session")
	ErrUnknownItem      = errors.New("menu item not found")
	ErrItemUnavailable  = errors.New("menu item is unavailable")
	ErrSessionNotFound  = errors.New("session not found")
)

// Reason returns a short label for err, used as a metrics label and in
// error responses. Unrecognised errors map to "internal".
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidTableCode):
		return "invalid_table_code"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrSubmissionFailed):
		return "submission_failed"
	case errors.Is(err, ErrInvalidOrder):
		return "invalid_order"
	case errors.Is(err, ErrTableUnbound):
		return "table_unbound"
	case errors.Is(err, ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, ErrItemUnavailable):
		return "item_unavailable"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	}
	return "internal"
}
