package observability

import (
	"net/http"
	"strings"
)

// VisitorTokenHeader carries the browser-generated visitor token.
const VisitorTokenHeader = "X-Visitor-Token"

func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// VisitorTokenFromRequest reads the visitor token from the header, falling
// back to the token query parameter used by websocket clients.
func VisitorTokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(VisitorTokenHeader)); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
