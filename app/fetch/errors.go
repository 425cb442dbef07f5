package fetch

import "fmt"

type Kind int

const (
	// KindNetwork covers connection, DNS and timeout failures where no
	// HTTP response was received.
	KindNetwork Kind = iota
	// KindHTTP is a terminal non-2xx response.
	KindHTTP
	// KindCloudflare is a detected challenge page with no proxy to try.
	KindCloudflare
	// KindProxyExhausted means every proxy candidate failed.
	KindProxyExhausted
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindHTTP:
		return "HTTP error"
	case KindCloudflare:
		return "cloudflare challenge"
	case KindProxyExhausted:
		return "proxy exhausted"
	}
	return "unknown error"
}

// Error is a failed fetch attempt. StatusCode is the raw status when a
// response was received, zero otherwise.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
