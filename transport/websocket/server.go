package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

type gameManager interface {
	CreateOrJoin(ctx context.Context, player entity.Identity) (*entity.Match, error)
	Move(ctx context.Context, number uint64, player entity.Identity, tile entity.Tile) (*entity.Match, error)
	Cancel(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error)
	Close(ctx context.Context, number uint64, signer entity.Identity) (*entity.Match, error)
	Match(ctx context.Context, number uint64) (*entity.Match, error)
}

type authService interface {
	ParseToken(token string) (entity.Identity, error)
}

type handlerFunc func(ctx context.Context, client *client, msg *Message) (*entity.Match, error)

// Server is a live match feed. Every match a connection acts on or watches is pushed to it on change.
type Server struct {
	logger   zerolog.Logger
	manager  gameManager
	auth     authService
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc

	watchersMutex sync.Mutex
	watchers      map[uint64]map[*client]struct{}
}

func New(logger zerolog.Logger, manager gameManager, auth authService) *Server {
	server := &Server{
		logger:  logger.With().Str("component", "websocket").Logger(),
		manager: manager,
		auth:    auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		handlers: make(map[string]handlerFunc),
		watchers: make(map[uint64]map[*client]struct{}),
	}

	server.handlers[actionJoin] = server.handleJoin
	server.handlers[actionMove] = server.handleMove
	server.handlers[actionCancel] = server.handleCancel
	server.handlers[actionClose] = server.handleClose
	server.handlers[actionWatch] = server.handleWatch

	return server
}

// ServeHTTP authenticates the caller with a bearer token, then upgrades the connection.
// Browsers cannot set headers on a websocket handshake, so a "token" query parameter is accepted too.
func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With().Str("method", "ServeHTTP").Logger()

	id, err := that.auth.ParseToken(bearerToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	c := &client{conn: conn, id: id}
	defer func() {
		that.unwatchAll(c)
		_ = conn.Close()
	}()

	log.Debug().Str("player", string(id)).Msg("connection established")

	that.handleMessages(r.Context(), c)
}

// handleMessages - processes messages from the client until the connection closes.
func (that *Server) handleMessages(ctx context.Context, c *client) {
	log := that.logger.With().Str("method", "handleMessages").Str("player", string(c.id)).Logger()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Msg("error reading message")
			}

			return
		}

		handler, ok := that.handlers[msg.Action]
		if !ok {
			that.send(c, errorMessage(msg.Action, errUnknownAction))
			continue
		}

		match, err := handler(ctx, c, &msg)
		if err != nil {
			log.Debug().Err(err).Str("action", msg.Action).Msg("action rejected")
			that.send(c, errorMessage(msg.Action, err))

			continue
		}

		that.send(c, matchMessage(msg.Action, match))

		if msg.Action == actionClose {
			that.publish(c, match)
			that.dropWatchers(match.Number)

			continue
		}

		that.watch(c, match.Number)
		that.publish(c, match)
	}
}

func (that *Server) send(c *client, msg *Message) {
	if err := c.write(msg); err != nil {
		that.logger.Debug().Err(err).Str("player", string(c.id)).Msg("failed to send message")
	}
}

// publish pushes match to every watcher except the connection that changed it.
func (that *Server) publish(origin *client, match *entity.Match) {
	that.watchersMutex.Lock()
	targets := make([]*client, 0, len(that.watchers[match.Number]))
	for c := range that.watchers[match.Number] {
		if c != origin {
			targets = append(targets, c)
		}
	}
	that.watchersMutex.Unlock()

	update := matchMessage(actionUpdate, match)
	for _, c := range targets {
		that.send(c, update)
	}
}

func (that *Server) watch(c *client, number uint64) {
	that.watchersMutex.Lock()
	defer that.watchersMutex.Unlock()

	if that.watchers[number] == nil {
		that.watchers[number] = make(map[*client]struct{})
	}

	that.watchers[number][c] = struct{}{}
}

func (that *Server) unwatchAll(c *client) {
	that.watchersMutex.Lock()
	defer that.watchersMutex.Unlock()

	for number, set := range that.watchers {
		delete(set, c)

		if len(set) == 0 {
			delete(that.watchers, number)
		}
	}
}

func (that *Server) dropWatchers(number uint64) {
	that.watchersMutex.Lock()
	defer that.watchersMutex.Unlock()

	delete(that.watchers, number)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}

	return r.URL.Query().Get("token")
}

// client is one websocket connection. gorilla connections allow a single concurrent writer.
type client struct {
	conn *websocket.Conn
	id   entity.Identity

	writeMutex sync.Mutex
}

func (that *client) write(msg *Message) error {
	that.writeMutex.Lock()
	defer that.writeMutex.Unlock()

	if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return that.conn.WriteJSON(msg)
}
