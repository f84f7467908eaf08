//go:generate mockgen -destination=./mocks/transport.go -package=mocks . Transport

package transfer

import "context"

// ResponseType tells a Transport what to keep of a response body.
type ResponseType string

const (
	// ResponseBlob keeps the body bytes in the result.
	ResponseBlob ResponseType = "blob"
	// ResponseDiscard reads and counts the body without keeping it.
	ResponseDiscard ResponseType = "discard"
)

// Valid reports whether rt is a known response type. The empty value is
// accepted and means ResponseBlob.
func (rt ResponseType) Valid() bool {
	switch rt {
	case "", ResponseBlob, ResponseDiscard:
		return true
	default:
		return false
	}
}

// Request describes one resource fetch.
type Request struct {
	URL          string
	ResponseType ResponseType
	Headers      map[string]string
}

// ProgressFunc receives byte-level samples. total is the expected body
// length and is only reported when known.
type ProgressFunc func(loaded, total int64)

// Payload is what a Transport hands back once a response has been received
// in full. Non-success statuses are returned as payloads, not errors.
type Payload struct {
	StatusCode         int
	ContentType        string
	ContentDisposition string
	FinalURL           string
	Length             int64
	Data               []byte
}

// Transport performs a single resource transfer. Implementations must stop
// and return promptly once ctx is cancelled. A returned error means the
// transfer failed below the resource level (DNS, connection, read errors).
type Transport interface {
	Transfer(ctx context.Context, req Request, progress ProgressFunc) (*Payload, error)
}
