package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/foundly/contact-service/internal/apperr"
)

// errorBody is the uniform error response shape: a machine-readable kind
// and a human message.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("httpapi: encode response: %v", err)
		}
	}
}

func respondErrorStatus(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, errorBody{Error: kind, Message: message})
}

// respondError maps domain error kinds onto HTTP statuses. Anything without
// a kind is an infrastructure failure: logged and masked as a 500, never
// dressed up as a domain outcome.
func respondError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		log.Printf("httpapi: internal error: %v", err)
		respondErrorStatus(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	var e *apperr.Error
	errors.As(err, &e)
	respondErrorStatus(w, status, string(kind), e.Message)
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:               http.StatusNotFound,
	apperr.KindInvalidActor:           http.StatusBadRequest,
	apperr.KindValidation:             http.StatusBadRequest,
	apperr.KindPermissionDenied:       http.StatusForbidden,
	apperr.KindBlocked:                http.StatusForbidden,
	apperr.KindInvalidStateTransition: http.StatusConflict,
	apperr.KindDuplicateRequest:       http.StatusConflict,
	apperr.KindDuplicateBlock:         http.StatusConflict,
	apperr.KindDuplicateReport:        http.StatusConflict,
}

// decodeBody parses a JSON request body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErrorStatus(w, http.StatusBadRequest, string(apperr.KindValidation), "malformed request body")
		return false
	}
	return true
}
