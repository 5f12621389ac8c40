package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

type mockManager struct {
	mock.Mock
}

func (that *mockManager) InitializeRegistry(ctx context.Context, economics *entity.Economics) (*entity.Registry, error) {
	args := that.Called(ctx, economics)
	registry, _ := args.Get(0).(*entity.Registry)
	return registry, args.Error(1)
}

func (that *mockManager) CreateOrJoin(ctx context.Context, player entity.Identity) (*entity.Match, error) {
	args := that.Called(ctx, player)
	match, _ := args.Get(0).(*entity.Match)
	return match, args.Error(1)
}

func (that *mockManager) Move(ctx context.Context, number uint64, player entity.Identity, tile entity.Tile) (*entity.Match, error) {
	args := that.Called(ctx, number, player, tile)
	match, _ := args.Get(0).(*entity.Match)
	return match, args.Error(1)
}

func (that *mockManager) Cancel(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error) {
	args := that.Called(ctx, number, signer)
	match, _ := args.Get(0).(*entity.Match)
	return match, args.Error(1)
}

func (that *mockManager) Close(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error) {
	args := that.Called(ctx, number, signer)
	match, _ := args.Get(0).(*entity.Match)
	return match, args.Error(1)
}

func (that *mockManager) WithdrawFees(ctx context.Context, signer entity.Identity, amount uint64) (uint64, error) {
	args := that.Called(ctx, signer, amount)
	return args.Get(0).(uint64), args.Error(1)
}

func (that *mockManager) Fund(ctx context.Context, signer, target entity.Identity, amount uint64) (uint64, error) {
	args := that.Called(ctx, signer, target, amount)
	return args.Get(0).(uint64), args.Error(1)
}

func (that *mockManager) Match(ctx context.Context, number uint64) (*entity.Match, error) {
	args := that.Called(ctx, number)
	match, _ := args.Get(0).(*entity.Match)
	return match, args.Error(1)
}

func (that *mockManager) Balance(ctx context.Context, id entity.Identity) (uint64, error) {
	args := that.Called(ctx, id)
	return args.Get(0).(uint64), args.Error(1)
}

func (that *mockManager) Registry(ctx context.Context) (*entity.Registry, error) {
	args := that.Called(ctx)
	registry, _ := args.Get(0).(*entity.Registry)
	return registry, args.Error(1)
}

func (that *mockManager) FeePool(ctx context.Context) (uint64, error) {
	args := that.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (that *mockManager) Completions(ctx context.Context, limit int) ([]*entity.CompletionRecord, error) {
	args := that.Called(ctx, limit)
	records, _ := args.Get(0).([]*entity.CompletionRecord)
	return records, args.Error(1)
}

// tokenAuth treats the bearer token as the identity itself.
type tokenAuth struct{}

func (tokenAuth) ParseToken(token string) (entity.Identity, error) {
	if token == "" || token == "bad" {
		return "", apperror.ErrUnauthorized
	}

	return entity.Identity(token), nil
}

func newTestServer(t *testing.T) (*Server, *mockManager) {
	t.Helper()

	manager := &mockManager{}
	t.Cleanup(func() { manager.AssertExpectations(t) })

	return New(zerolog.Nop(), manager, tokenAuth{}, "admin"), manager
}

func do(t *testing.T, server *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	return resp
}

func TestServer_Auth(t *testing.T) {
	t.Run("Ping needs no identity", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodGet, "/ping", "", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", rec.Body.String())
	})

	t.Run("Missing bearer token is unauthorized", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/matches", "", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decodeError(t, rec).Error)
	})

	t.Run("Invalid bearer token is unauthorized", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/matches", "bad", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Unknown route is a JSON not found", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodGet, "/nowhere", "", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NotFound", decodeError(t, rec).Error)
	})
}

func TestServer_Registry(t *testing.T) {
	t.Run("Admin initializes an economic registry and becomes its owner", func(t *testing.T) {
		// Given: a server whose admin is "admin"
		server, manager := newTestServer(t)
		economics := &entity.Economics{FeePercent: 5, FixedBet: 100, Owner: "admin"}
		registry := &entity.Registry{Economics: economics}
		manager.On("InitializeRegistry", mock.Anything, economics).Return(registry, nil).Once()

		// When: the admin posts the registry
		rec := do(t, server, http.MethodPost, "/registry", "admin",
			`{"economic":true,"fee_percent":5,"fixed_bet":100}`)

		// Then: it is created
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("Non-admin cannot initialize the registry", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/registry", "alice", `{"economic":false}`)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "SignerIsNotOwner", decodeError(t, rec).Error)
	})

	t.Run("Second initialization is a registry conflict", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("InitializeRegistry", mock.Anything, (*entity.Economics)(nil)).
			Return(nil, apperror.ErrRegistryAlreadyInitialized).Once()

		rec := do(t, server, http.MethodPost, "/registry", "admin", `{"economic":false}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apperror.ErrRegistryAlreadyInitialized.Code(), decodeError(t, rec).Error)
	})

	t.Run("Registry view includes the fee pool", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Registry", mock.Anything).Return(&entity.Registry{MatchCount: 3}, nil).Once()
		manager.On("FeePool", mock.Anything).Return(uint64(42), nil).Once()

		rec := do(t, server, http.MethodGet, "/registry", "alice", "")

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			FeePool uint64 `json:"fee_pool"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, uint64(42), resp.FeePool)
	})
}

func TestServer_Matches(t *testing.T) {
	t.Run("Create or join acts as the caller", func(t *testing.T) {
		server, manager := newTestServer(t)
		match := entity.NewMatch(1)
		manager.On("CreateOrJoin", mock.Anything, entity.Identity("alice")).Return(match, nil).Once()

		rec := do(t, server, http.MethodPost, "/matches", "alice", "")

		require.Equal(t, http.StatusOK, rec.Code)

		var got entity.Match
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, uint64(1), got.Number)
	})

	t.Run("Move decodes the tile", func(t *testing.T) {
		server, manager := newTestServer(t)
		tile := entity.Tile{Row: 2, Column: 1}
		manager.On("Move", mock.Anything, uint64(7), entity.Identity("bob"), tile).
			Return(entity.NewMatch(7), nil).Once()

		rec := do(t, server, http.MethodPost, "/matches/7/moves", "bob", `{"row":2,"column":1}`)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Move without a column is a bad request", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/matches/7/moves", "bob", `{"row":2}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Non-numeric match is a bad request", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodGet, "/matches/abc", "bob", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Move out of turn is a bad request carrying the ledger code", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Move", mock.Anything, uint64(1), entity.Identity("bob"), entity.Tile{}).
			Return(nil, apperror.ErrNotPlayersTurn).Once()

		rec := do(t, server, http.MethodPost, "/matches/1/moves", "bob", `{"row":0,"column":0}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperror.ErrNotPlayersTurn.Code(), decodeError(t, rec).Error)
	})

	t.Run("Unknown match is not found", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Match", mock.Anything, uint64(9)).Return(nil, apperror.ErrMatchNotFound).Once()

		rec := do(t, server, http.MethodGet, "/matches/9", "bob", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Cancel and close act as the caller", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Cancel", mock.Anything, uint64(3), entity.Identity("alice")).Return(entity.NewMatch(3), nil).Once()
		manager.On("Close", mock.Anything, uint64(3), entity.Identity("alice")).Return(entity.NewMatch(3), nil).Once()

		assert.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/matches/3/cancel", "alice", "").Code)
		assert.Equal(t, http.StatusOK, do(t, server, http.MethodDelete, "/matches/3", "alice", "").Code)
	})

	t.Run("Internal errors hide their message", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Close", mock.Anything, uint64(3), entity.Identity("alice")).
			Return(nil, apperror.ErrPotNotConserved).Once()

		rec := do(t, server, http.MethodDelete, "/matches/3", "alice", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, apperror.ErrPotNotConserved.Code(), resp.Error)
		assert.Empty(t, resp.Message)
	})
}

func TestServer_Accounts(t *testing.T) {
	t.Run("Insufficient funds maps to payment required", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("CreateOrJoin", mock.Anything, entity.Identity("alice")).
			Return(nil, apperror.ErrInsufficientFunds).Once()

		rec := do(t, server, http.MethodPost, "/matches", "alice", "")

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("Fund credits the path identity as the caller", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Fund", mock.Anything, entity.Identity("admin"), entity.Identity("alice"), uint64(500)).
			Return(uint64(500), nil).Once()

		rec := do(t, server, http.MethodPost, "/accounts/alice/fund", "admin", `{"amount":500}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp balanceResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, balanceResponse{Identity: "alice", Balance: 500}, resp)
	})

	t.Run("Withdraw reports the remaining pool", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("WithdrawFees", mock.Anything, entity.Identity("admin"), uint64(10)).Return(uint64(5), nil).Once()

		rec := do(t, server, http.MethodPost, "/fees/withdraw", "admin", `{"amount":10}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp feePoolResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, uint64(5), resp.FeePool)
	})

	t.Run("Balance is readable by any identity", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Balance", mock.Anything, entity.Identity("bob")).Return(uint64(7), nil).Once()

		rec := do(t, server, http.MethodGet, "/accounts/bob", "alice", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Completions limit is clamped", func(t *testing.T) {
		server, manager := newTestServer(t)
		manager.On("Completions", mock.Anything, maxCompletionsLimit).Return([]*entity.CompletionRecord{}, nil).Once()

		rec := do(t, server, http.MethodGet, "/completions?limit=100000", "alice", "")

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Invalid completions limit is a bad request", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodGet, "/completions?limit=-1", "alice", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
