// Package httpx provides HTTP response utilities.
package httpx

import "net/http"

// RespondError reports an error the handlers have no mapping for. The
// message stays out of the body; callers log the details.
func RespondError(w http.ResponseWriter, err error) {
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
