package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

const (
	actionJoin   = "match:join"
	actionMove   = "match:move"
	actionCancel = "match:cancel"
	actionClose  = "match:close"
	actionWatch  = "match:watch"
	actionUpdate = "match:update"
)

var (
	errUnknownAction  = errors.New("unknown action")
	errInvalidPayload = errors.New("invalid payload")
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// MatchPayload addresses a match. Row and Column are only read by match:move.
type MatchPayload struct {
	Number uint64 `json:"number"`
	Row    *int   `json:"row,omitempty"`
	Column *int   `json:"column,omitempty"`
}

func decodePayload(msg *Message) (*MatchPayload, error) {
	var payload MatchPayload

	if len(msg.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload is required", errInvalidPayload)
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidPayload, err)
	}

	return &payload, nil
}

func matchMessage(action string, match *entity.Match) *Message {
	return &Message{Action: action, Payload: mustMarshal(match)}
}

// errorMessage carries the ledger error code. Internal errors keep their message private.
func errorMessage(action string, err error) *Message {
	switch {
	case errors.Is(err, errUnknownAction):
		return &Message{Action: action, Error: &ErrorPayload{Code: "UnknownAction", Message: err.Error()}}
	case errors.Is(err, errInvalidPayload):
		return &Message{Action: action, Error: &ErrorPayload{Code: "InvalidPayload", Message: err.Error()}}
	}

	code := apperror.CodeOf(err)
	if code == "" || apperror.IsInternal(err) {
		if code == "" {
			code = "Internal"
		}

		return &Message{Action: action, Error: &ErrorPayload{Code: code}}
	}

	return &Message{Action: action, Error: &ErrorPayload{Code: code, Message: err.Error()}}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("failed to marshal message: %w", err))
	}

	return b
}
