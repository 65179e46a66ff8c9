package netbox

import (
	"encoding/json"
	"fmt"
)

// Page is the standard NetBox list envelope.
type Page struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

// APIError is a non-2xx response from NetBox. Body carries the remote
// payload verbatim so callers can surface NetBox's own explanation.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("netbox: HTTP %d: %s", e.StatusCode, truncate(e.Body, 300))
}

// ClientError reports whether the error is a 4xx rejection. 4xx responses
// are never retried; they describe a request NetBox will keep refusing.
func (e *APIError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
