package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	idleTimeout     = 30 * time.Second
	handlerTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type gameManager interface {
	InitializeRegistry(ctx context.Context, economics *entity.Economics) (*entity.Registry, error)
	CreateOrJoin(ctx context.Context, player entity.Identity) (*entity.Match, error)
	Move(ctx context.Context, number uint64, player entity.Identity, tile entity.Tile) (*entity.Match, error)
	Cancel(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error)
	Close(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error)
	WithdrawFees(ctx context.Context, signer entity.Identity, amount uint64) (uint64, error)
	Fund(ctx context.Context, signer, target entity.Identity, amount uint64) (uint64, error)

	Match(ctx context.Context, number uint64) (*entity.Match, error)
	Balance(ctx context.Context, id entity.Identity) (uint64, error)
	Registry(ctx context.Context) (*entity.Registry, error)
	FeePool(ctx context.Context) (uint64, error)
	Completions(ctx context.Context, limit int) ([]*entity.CompletionRecord, error)
}

type authService interface {
	ParseToken(token string) (entity.Identity, error)
}

type Server struct {
	logger zerolog.Logger
	router chi.Router

	manager gameManager
	auth    authService

	// admin is the only identity allowed to create the registry over HTTP.
	admin entity.Identity
}

func New(logger zerolog.Logger, manager gameManager, auth authService, admin entity.Identity) *Server {
	that := &Server{
		logger:  logger.With().Str("component", "rest").Logger(),
		router:  chi.NewRouter(),
		manager: manager,
		auth:    auth,
		admin:   admin,
	}

	that.router.Use(chimw.RequestID)
	that.router.Use(chimw.RealIP)
	that.router.Use(that.requestLogger)
	that.router.Use(chimw.Recoverer)

	that.router.Get("/ping", pingHandler)

	that.router.Group(func(r chi.Router) {
		r.Use(that.requireIdentity)
		r.Use(chimw.Timeout(handlerTimeout))

		r.Post("/registry", that.initializeRegistry)
		r.Get("/registry", that.getRegistry)

		r.Post("/matches", that.createOrJoin)
		r.Route("/matches/{number}", func(r chi.Router) {
			r.Get("/", that.getMatch)
			r.Delete("/", that.closeMatch)
			r.Post("/moves", that.move)
			r.Post("/cancel", that.cancel)
		})

		r.Post("/fees/withdraw", that.withdrawFees)
		r.Get("/accounts/{identity}", that.getBalance)
		r.Post("/accounts/{identity}/fund", that.fund)
		r.Get("/completions", that.listCompletions)
	})

	that.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "NotFound", Message: "no route for " + r.URL.Path})
	})

	return that
}

// Handle mounts a long-lived handler, such as the match feed, outside the request timeout.
func (that *Server) Handle(pattern string, handler http.Handler) {
	that.router.Handle(pattern, handler)
}

func (that *Server) Handler() http.Handler {
	return that.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

func (that *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		that.logger.Debug().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
