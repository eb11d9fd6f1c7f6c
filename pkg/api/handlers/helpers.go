package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dtn-bard/bard/pkg/api/apiresponse"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	apiresponse.JSON(w, status, data)
}

func healthyResponse(data interface{}) apiresponse.Response { return apiresponse.HealthyResponse(data) }
func unhealthyResponse(msg string) apiresponse.Response     { return apiresponse.UnhealthyResponse(msg) }
func okResponse(data interface{}) apiresponse.Response      { return apiresponse.OKResponse(data) }

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// BadRequest writes a 400 with a human-readable reason, matching the
// configuration-error class: the command did nothing and the caller
// gets a message they can act on.
func BadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, apiresponse.ErrorResponse(msg))
}

// NotFound writes a 404, used when a key or restage link name is unknown.
func NotFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, apiresponse.ErrorResponse(msg))
}

// Conflict writes a 409, used for ErrRescanInProgress.
func Conflict(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusConflict, apiresponse.ErrorResponse(msg))
}

// InternalServerError writes a 500 for everything that isn't a policy
// or configuration rejection.
func InternalServerError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusInternalServerError, apiresponse.ErrorResponse(msg))
}
