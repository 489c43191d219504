package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dyne/cifrado/internal/cipher"
)

var errTrailingData = errors.New("trailing data after JSON value")

type textRequest struct {
	Text *string `json:"text"`
}

type resultResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(mode cipher.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has("text") {
			writeError(w, http.StatusUnprocessableEntity, "missing field: text")
			return
		}
		s.metrics.Transform(mode, "query")
		writeJSON(w, http.StatusOK, resultResponse{Result: mode.Apply(q.Get("text"))})
	}
}

func (s *Server) handleJSON(mode cipher.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		var req textRequest
		if err := decodeSingle(r.Body, &req); err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "malformed JSON body")
			return
		}
		if req.Text == nil {
			writeError(w, http.StatusUnprocessableEntity, "missing field: text")
			return
		}
		s.metrics.Transform(mode, "json")
		writeJSON(w, http.StatusOK, resultResponse{Result: mode.Apply(*req.Text)})
	}
}

// decodeSingle decodes exactly one JSON value from body; anything after it
// other than whitespace is an error.
func decodeSingle(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return errTrailingData
		}
		return err
	}
	return nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
