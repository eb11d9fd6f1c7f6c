package api

import (
	"net/http"

	"github.com/dtn-bard/bard/pkg/api/apiresponse"
)

// ServiceName identifies the daemon in every response envelope, so a
// client talking to several DTN node services can tell a BARD reply
// apart from its neighbors without inspecting the payload.
const ServiceName = apiresponse.ServiceName

// Response represents a standard API response wrapper.
//
// All API responses follow this structure for consistency:
//   - Status indicates the overall result ("healthy", "unhealthy", "ok", "error")
//   - Service names the responding daemon (always "bardd")
//   - Timestamp provides response time for debugging and caching
//   - Data contains the response payload (optional)
//   - Error contains error details when Status indicates failure (optional)
type Response = apiresponse.Response

// JSON writes a JSON response with the given status code.
//
// The response is written with Content-Type: application/json header.
// If encoding fails, an error response is written instead.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	apiresponse.JSON(w, status, data)
}

// HealthyResponse creates a successful health check response.
func HealthyResponse(data interface{}) Response {
	return apiresponse.HealthyResponse(data)
}

// UnhealthyResponse creates a failed health check response.
func UnhealthyResponse(errMsg string) Response {
	return apiresponse.UnhealthyResponse(errMsg)
}

// OKResponse creates a generic successful response.
func OKResponse(data interface{}) Response {
	return apiresponse.OKResponse(data)
}

// ErrorResponse creates a generic error response.
func ErrorResponse(errMsg string) Response {
	return apiresponse.ErrorResponse(errMsg)
}
