package websocket

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

func (that *Server) handleJoin(ctx context.Context, c *client, _ *Message) (*entity.Match, error) {
	return that.manager.CreateOrJoin(ctx, c.id)
}

func (that *Server) handleMove(ctx context.Context, c *client, msg *Message) (*entity.Match, error) {
	payload, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}

	if payload.Row == nil || payload.Column == nil {
		return nil, fmt.Errorf("%w: row and column are required", errInvalidPayload)
	}

	return that.manager.Move(ctx, payload.Number, c.id, entity.Tile{Row: *payload.Row, Column: *payload.Column})
}

func (that *Server) handleCancel(ctx context.Context, c *client, msg *Message) (*entity.Match, error) {
	payload, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}

	return that.manager.Cancel(ctx, payload.Number, c.id)
}

func (that *Server) handleClose(ctx context.Context, c *client, msg *Message) (*entity.Match, error) {
	payload, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}

	return that.manager.Close(ctx, payload.Number, c.id)
}

// handleWatch subscribes to a match without acting on it.
func (that *Server) handleWatch(ctx context.Context, _ *client, msg *Message) (*entity.Match, error) {
	payload, err := decodePayload(msg)
	if err != nil {
		return nil, err
	}

	return that.manager.Match(ctx, payload.Number)
}
