package api

import (
	"github.com/google/uuid"
)

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// userID returns the acting user for a request. There is no login flow;
// callers identify themselves with the X-User-ID header.
func userID(headerVal string) string {
	if headerVal == "" {
		return "anonymous"
	}
	return headerVal
}
