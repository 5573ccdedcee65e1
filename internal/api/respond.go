package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/lox/nutrisense/internal/soil"
	"github.com/lox/nutrisense/internal/store"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

type errorBody struct {
	Detail any `json:"detail"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorBody{Detail: detail})
}

// writeValidation reports every offending field with 422.
func writeValidation(w http.ResponseWriter, err error) {
	var details []fieldError
	for _, ve := range soil.ValidationErrors(err) {
		details = append(details, fieldError{Field: string(ve.Field), Message: ve.Error()})
	}
	if len(details) == 0 {
		details = append(details, fieldError{Message: err.Error()})
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: details})
}

// writeBodyError reports an unreadable request body: 413 when it exceeds the
// size limit, 422 otherwise.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	writeValidation(w, err)
}

// writeError maps store errors to status codes. Internal failures only carry
// detail in development.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	case errors.Is(err, store.ErrInvalidPage):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: []fieldError{{Message: err.Error()}}})
		return
	}

	log.Printf("api: %s: %v (id=%s)", op, err, RequestID(r.Context()))
	detail := "Internal server error"
	if s.opts.Environment == "development" {
		detail = fmt.Sprintf("Failed to %s: %v", op, err)
	}
	writeDetail(w, http.StatusInternalServerError, detail)
}
