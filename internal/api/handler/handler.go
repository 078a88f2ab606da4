// Package handler provides HTTP handlers for the Give and Get API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/giveandget/giveandget/internal/api/response"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v. It writes a 400 problem and returns
// false when the body is missing or malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, "request body is required", nil)
		case errors.As(err, &maxErr):
			response.BadRequest(w, r, "request body is too large", nil)
		default:
			response.BadRequest(w, r, "invalid JSON body", nil)
		}
		return false
	}
	return true
}
