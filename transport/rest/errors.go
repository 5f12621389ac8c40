package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var statusByKind = map[apperror.Kind]int{
	apperror.KindValidation:    http.StatusBadRequest,
	apperror.KindStateConflict: http.StatusConflict,
	apperror.KindAuthorization: http.StatusForbidden,
	apperror.KindRegistry:      http.StatusConflict,
	apperror.KindFunds:         http.StatusPaymentRequired,
	apperror.KindNotFound:      http.StatusNotFound,
	apperror.KindInternal:      http.StatusInternalServerError,
}

// writeError surfaces the ledger error code verbatim. Internal errors are logged and their details withheld.
func (that *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: "malformed request"})
		return
	case errors.Is(err, apperror.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: apperror.ErrUnauthorized.Code(), Message: apperror.ErrUnauthorized.Error()})
		return
	}

	kind := apperror.KindOf(err)

	status, ok := statusByKind[kind]
	if !ok || kind == apperror.KindInternal {
		that.logger.Error().Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("request failed")

		code := apperror.CodeOf(err)
		if code == "" {
			code = "Internal"
		}

		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: code})

		return
	}

	that.logger.Debug().Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("request rejected")

	writeJSON(w, status, errorResponse{Error: apperror.CodeOf(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
