package reconcile

import "fmt"

// ErrorKind classifies why a single report failed.
type ErrorKind int

const (
	KindMalformedTimestamp ErrorKind = iota + 1
	KindStoreRead
	KindStoreWrite
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedTimestamp:
		return "malformed_timestamp"
	case KindStoreRead:
		return "store_read"
	case KindStoreWrite:
		return "store_write"
	default:
		return "unknown"
	}
}

// ItemError is the fault behind a FAILED digest entry. It never escapes
// Reconcile; it is logged and handed to Reconciler.OnItemError when set.
type ItemError struct {
	Kind      ErrorKind
	ContentID string
	Key       string
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s for content %q: %v", e.Kind, e.ContentID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
