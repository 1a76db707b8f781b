package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fixlens/fixlens/internal/domain"
)

// maxRequestBodyBytes caps JSON request bodies. Media uploads go through
// the storage layer and are not subject to this limit.
const maxRequestBodyBytes = 1 << 20 // 1 MB

// decodeJSON reads a JSON request body into dst.
// Unknown fields are rejected so client typos surface as 400s instead of
// silently dropped parameters.
func decodeJSON(r *http.Request, dst interface{}) error {
	const op = "handler.decodeJSON"

	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		return domain.Invalid(op, "Content-Type must be application/json")
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid(op, "Request body is required")
		}
		return domain.Invalid(op, "Request body is not valid JSON")
	}

	// A second value means trailing garbage after the JSON document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}
	return nil
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
