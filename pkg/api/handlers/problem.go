// Package handlers provides HTTP handlers for the PitchSight API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitchsight/pitchsight/pkg/models"
	"github.com/pitchsight/pitchsight/pkg/upload"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// If not set, defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	problem := &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}

	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteError maps pipeline errors onto the HTTP error taxonomy.
//
// Not-found and ownership failures are distinct on purpose: a coach probing
// someone else's session learns the session exists, but nothing else.
func WriteError(w http.ResponseWriter, err error) {
	var notExportable *models.NotExportableError
	switch {
	case errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrJobNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, models.ErrNotOwner):
		Forbidden(w, err.Error())
	case errors.Is(err, models.ErrUploadMissing):
		BadRequest(w, err.Error())
	case errors.Is(err, models.ErrSessionTerminal):
		Conflict(w, err.Error())
	case errors.Is(err, upload.ErrInvalidMode):
		BadRequest(w, err.Error())
	case errors.As(err, &notExportable):
		Conflict(w, err.Error())
	case errors.Is(err, models.ErrInfraUnavailable):
		ServiceUnavailable(w, err.Error())
	default:
		InternalServerError(w, "an unexpected error occurred")
	}
}

// Common problem helper functions for standard HTTP errors.

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden writes a 403 Forbidden problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, "Forbidden", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict writes a 409 Conflict problem response.
func Conflict(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusConflict, "Conflict", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// ServiceUnavailable writes a 503 problem response for transient outages.
func ServiceUnavailable(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", detail)
}
