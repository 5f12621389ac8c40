package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

type contextKey struct{}

var identityKey = contextKey{}

// requireIdentity resolves the caller from an "Authorization: Bearer <token>" header.
func (that *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
			that.writeError(w, r, apperror.ErrUnauthorized)
			return
		}

		id, err := that.auth.ParseToken(strings.TrimSpace(header[len("bearer "):]))
		if err != nil {
			that.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) entity.Identity {
	id, _ := ctx.Value(identityKey).(entity.Identity)
	return id
}
