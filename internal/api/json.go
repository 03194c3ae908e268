package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/sequence"
	"github.com/starford/seqsync/internal/visibility"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// statusOf maps the apperr taxonomy onto HTTP status codes.
func statusOf(err error) int {
	if kind, ok := sequence.KindOf(err); ok {
		switch kind {
		case sequence.KindNotFound:
			return http.StatusNotFound
		case sequence.KindNetwork:
			return http.StatusBadGateway
		case sequence.KindParse:
			return http.StatusUnprocessableEntity
		}
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConstraintViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrBusy),
		errors.Is(err, apperr.ErrStale),
		errors.Is(err, apperr.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrAdapterFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError writes err with its mapped status. Unmapped errors are logged
// and reported as "internal error".
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

// writeResult writes a visibility result. Failed results keep the result body
// and take the status of their error.
func writeResult(w http.ResponseWriter, res visibility.Result) {
	status := http.StatusOK
	if !res.Success && res.Err != nil {
		status = statusOf(res.Err)
	}
	writeJSON(w, status, res)
}
