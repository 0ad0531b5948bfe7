package web

import (
	"net/http"

	"github.com/JonMunkholm/assurelog/internal/core"
)

// identity returns the caller set by the bearer middleware. Routes under
// /api are never reached without one.
func identity(r *http.Request) core.Identity {
	id, _ := core.IdentityFromContext(r.Context())
	return id
}
