package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

const maxCompletionsLimit = 500

var errBadRequest = errors.New("bad request")

type registryRequest struct {
	Economic   bool   `json:"economic"`
	FeePercent uint64 `json:"fee_percent"`
	FixedBet   uint64 `json:"fixed_bet"`
}

type registryResponse struct {
	Registry *entity.Registry `json:"registry"`
	FeePool  uint64           `json:"fee_pool"`
}

type moveRequest struct {
	Row    *int `json:"row"`
	Column *int `json:"column"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type balanceResponse struct {
	Identity entity.Identity `json:"identity"`
	Balance  uint64          `json:"balance"`
}

type feePoolResponse struct {
	FeePool uint64 `json:"fee_pool"`
}

// initializeRegistry makes the caller the owner of an economic ledger.
func (that *Server) initializeRegistry(w http.ResponseWriter, r *http.Request) {
	caller := identityFrom(r.Context())
	if that.admin.IsZero() || caller != that.admin {
		that.writeError(w, r, apperror.ErrSignerIsNotOwner)
		return
	}

	var req registryRequest
	if err := decode(r, &req); err != nil {
		that.writeError(w, r, err)
		return
	}

	var economics *entity.Economics
	if req.Economic {
		economics = &entity.Economics{FeePercent: req.FeePercent, FixedBet: req.FixedBet, Owner: caller}
	}

	registry, err := that.manager.InitializeRegistry(r.Context(), economics)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registryResponse{Registry: registry})
}

func (that *Server) getRegistry(w http.ResponseWriter, r *http.Request) {
	registry, err := that.manager.Registry(r.Context())
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	feePool, err := that.manager.FeePool(r.Context())
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, registryResponse{Registry: registry, FeePool: feePool})
}

func (that *Server) createOrJoin(w http.ResponseWriter, r *http.Request) {
	match, err := that.manager.CreateOrJoin(r.Context(), identityFrom(r.Context()))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, match)
}

func (that *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	number, err := matchNumber(r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	match, err := that.manager.Match(r.Context(), number)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, match)
}

func (that *Server) move(w http.ResponseWriter, r *http.Request) {
	number, err := matchNumber(r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	var req moveRequest
	if err = decode(r, &req); err != nil {
		that.writeError(w, r, err)
		return
	}

	if req.Row == nil || req.Column == nil {
		that.writeError(w, r, errBadRequest)
		return
	}

	tile := entity.Tile{Row: *req.Row, Column: *req.Column}

	match, err := that.manager.Move(r.Context(), number, identityFrom(r.Context()), tile)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, match)
}

func (that *Server) cancel(w http.ResponseWriter, r *http.Request) {
	number, err := matchNumber(r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	match, err := that.manager.Cancel(r.Context(), number, identityFrom(r.Context()))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, match)
}

func (that *Server) closeMatch(w http.ResponseWriter, r *http.Request) {
	number, err := matchNumber(r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	archived, err := that.manager.Close(r.Context(), number, identityFrom(r.Context()))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, archived)
}

func (that *Server) withdrawFees(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		that.writeError(w, r, err)
		return
	}

	feePool, err := that.manager.WithdrawFees(r.Context(), identityFrom(r.Context()), req.Amount)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feePoolResponse{FeePool: feePool})
}

func (that *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	id := entity.Identity(chi.URLParam(r, "identity"))

	balance, err := that.manager.Balance(r.Context(), id)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Identity: id, Balance: balance})
}

func (that *Server) fund(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		that.writeError(w, r, err)
		return
	}

	target := entity.Identity(chi.URLParam(r, "identity"))

	balance, err := that.manager.Fund(r.Context(), identityFrom(r.Context()), target, req.Amount)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Identity: target, Balance: balance})
}

func (that *Server) listCompletions(w http.ResponseWriter, r *http.Request) {
	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			that.writeError(w, r, errBadRequest)
			return
		}

		limit = min(parsed, maxCompletionsLimit)
	}

	records, err := that.manager.Completions(r.Context(), limit)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func matchNumber(r *http.Request) (uint64, error) {
	number, err := strconv.ParseUint(chi.URLParam(r, "number"), 10, 64)
	if err != nil {
		return 0, errBadRequest
	}

	return number, nil
}

func decode(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return errBadRequest
	}

	return nil
}
