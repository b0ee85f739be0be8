package api

import (
	"encoding/json"
	"net/http"

	"simplepage/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its HTTP status and writes a uniform
// {error, kind} body.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	writeJSON(w, errs.StatusCode(kind), map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errs.New(errs.BadRequest, "missing request body")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.BadRequest, err, "decode request body")
	}
	return nil
}
