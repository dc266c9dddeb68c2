package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/cards"
	"github.com/A2152225/MTGEDH-sub013/internal/game"
)

// Hub owns the websocket clients and routes their commands into the
// rules engine. After every successful command it pushes each client
// of the affected game a fresh snapshot redacted for that client's
// player.
type Hub struct {
	engine *game.Engine
	logger *zap.Logger

	register   chan *Client
	unregister chan *Client

	// registry and decks back the create_game command. Without them
	// the server only serves games created elsewhere.
	registry *cards.Registry
	decks    *cards.DeckFile

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub wires a hub to the engine.
func NewHub(engine *game.Engine, logger *zap.Logger) *Hub {
	return &Hub{
		engine:     engine,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// UseDecks equips the hub with a card registry and configured
// decklists, enabling the create_game command.
func (h *Hub) UseDecks(registry *cards.Registry, decks *cards.DeckFile) {
	h.registry = registry
	h.decks = decks
}

// Run processes client registration until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected",
				zap.String("player_id", client.playerID),
				zap.String("game_id", client.gameID),
			)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// RunStepExpiry sweeps every game for timed-out resolution steps on a
// fixed interval until ctx is done.
func (h *Hub) RunStepExpiry(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			h.expireSteps(now)
		case <-ctx.Done():
			return
		}
	}
}

// expireSteps consumes every active step past its deadline and
// broadcasts the games whose state moved.
func (h *Hub) expireSteps(now time.Time) {
	for _, gameID := range h.engine.GameIDs() {
		n, err := h.engine.ExpireTimedOutSteps(gameID, now)
		if err != nil {
			h.logger.Warn("step expiry sweep failed",
				zap.String("game_id", gameID),
				zap.Error(err))
			continue
		}
		if n > 0 {
			h.BroadcastGame(gameID)
		}
	}
}

// handleCommand dispatches one client command against the engine.
func (h *Hub) handleCommand(c *Client, cmd Command) {
	switch cmd.Type {
	case CmdJoinGame:
		h.handleJoin(c, cmd)
		return
	case CmdCreateGame:
		h.handleCreateGame(c, cmd)
		return
	}

	h.mu.RLock()
	gameID, playerID := c.gameID, c.playerID
	h.mu.RUnlock()
	if cmd.GameID != "" {
		gameID = cmd.GameID
	}
	if cmd.PlayerID != "" {
		playerID = cmd.PlayerID
	}
	if gameID == "" {
		c.sendError("MALFORMED", "no game joined")
		return
	}

	var err error
	switch cmd.Type {
	case CmdPassPriority:
		err = h.engine.PassPriority(gameID, playerID)
	case CmdNextStep:
		err = h.engine.NextStep(gameID, playerID)
	case CmdPlayLand:
		err = h.engine.PlayLand(gameID, playerID, cmd.CardID)
	case CmdCastSpell:
		req := game.CastSpellRequest{CardID: cmd.CardID, Targets: cmd.Targets}
		if cmd.Effect != nil {
			req.Effect = *cmd.Effect
		}
		_, err = h.engine.CastSpell(gameID, playerID, req)
	case CmdCastCommander:
		_, err = h.engine.CastCommander(gameID, playerID, cmd.CardID)
	case CmdActivate:
		req := game.ActivateAbilityRequest{
			SourceID:    cmd.SourceID,
			Description: cmd.Description,
			Targets:     cmd.Targets,
		}
		if cmd.Effect != nil {
			req.Effect = *cmd.Effect
		}
		_, err = h.engine.ActivateAbility(gameID, playerID, req)
	case CmdResolveTop:
		err = h.engine.ResolveTopOfStack(gameID)
	case CmdSubmitResponse:
		err = h.engine.SubmitResolutionResponse(gameID, playerID, cmd.StepID, cmd.Selections)
	case CmdMoveCard:
		err = h.engine.MoveCard(gameID, playerID, cmd.CardID, game.Zone(cmd.From), game.Zone(cmd.To))
	case CmdConcede:
		err = h.engine.Concede(gameID, playerID)
	case CmdRollback:
		err = h.engine.RollbackToTurn(gameID, cmd.Turn)
	case CmdResync:
		h.sendState(c, gameID)
		return
	default:
		c.sendError("MALFORMED", "unknown command type "+cmd.Type)
		return
	}

	if err != nil {
		h.logger.Debug("command rejected",
			zap.String("type", cmd.Type),
			zap.String("game_id", gameID),
			zap.String("player_id", playerID),
			zap.Error(err),
		)
		c.sendError(string(game.CodeOf(err)), err.Error())
		return
	}
	h.BroadcastGame(gameID)
}

// handleCreateGame builds a game from configured decklists.
func (h *Hub) handleCreateGame(c *Client, cmd Command) {
	if h.registry == nil || h.decks == nil {
		c.sendError("MALFORMED", "this server has no decklists configured")
		return
	}
	if len(cmd.Players) < 2 {
		c.sendError("MALFORMED", "create_game needs at least two players")
		return
	}
	setups := make([]game.PlayerSetup, 0, len(cmd.Players))
	for _, spec := range cmd.Players {
		if spec.ID == "" {
			c.sendError("MALFORMED", "every player needs an id")
			return
		}
		entry, ok := h.decks.Deck(spec.Deck)
		if !ok {
			c.sendError("MALFORMED", "unknown deck "+spec.Deck)
			return
		}
		deck, commander, err := entry.Build(h.registry)
		if err != nil {
			c.sendError("MALFORMED", err.Error())
			return
		}
		setups = append(setups, game.PlayerSetup{
			ID:        spec.ID,
			Name:      spec.Name,
			Deck:      deck,
			Commander: commander,
		})
	}
	gameID, err := h.engine.CreateGame(game.CreateGameOptions{
		GameID:  cmd.GameID,
		Players: setups,
		Seed:    cmd.Seed,
	})
	if err != nil {
		c.sendError(string(game.CodeOf(err)), err.Error())
		return
	}
	h.logger.Info("game created",
		zap.String("game_id", gameID),
		zap.Int("players", len(setups)),
	)
	c.sendMessage(ServerMessage{Type: MsgGameCreated, GameID: gameID})
}

func (h *Hub) handleJoin(c *Client, cmd Command) {
	if cmd.GameID == "" {
		c.sendError("MALFORMED", "join_game needs a game_id")
		return
	}
	if _, err := h.engine.GetView(cmd.GameID, cmd.PlayerID); err != nil {
		c.sendError(string(game.CodeOf(err)), err.Error())
		return
	}
	h.mu.Lock()
	c.gameID = cmd.GameID
	c.playerID = cmd.PlayerID
	h.mu.Unlock()
	h.logger.Info("client joined game",
		zap.String("game_id", c.gameID),
		zap.String("player_id", c.playerID),
	)
	c.sendMessage(ServerMessage{Type: MsgJoined, GameID: c.gameID})
	h.sendState(c, c.gameID)
}

// sendState pushes one client its redacted snapshot.
func (h *Hub) sendState(c *Client, gameID string) {
	h.mu.RLock()
	playerID := c.playerID
	h.mu.RUnlock()
	view, err := h.engine.GetView(gameID, playerID)
	if err != nil {
		c.sendError(string(game.CodeOf(err)), err.Error())
		return
	}
	c.sendMessage(ServerMessage{
		Type:   MsgGameState,
		GameID: gameID,
		Seq:    view.Seq,
		State:  view,
	})
}

// BroadcastGame pushes every client of the game its own redacted
// snapshot. Views differ per viewer, so each client gets its own
// marshal rather than one shared payload.
func (h *Hub) BroadcastGame(gameID string) {
	h.mu.RLock()
	var targets []*Client
	for client := range h.clients {
		if client.gameID == gameID {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.sendState(client, gameID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ServeWS upgrades an HTTP request and registers the connection.
// allowedOrigins of ["*"] accepts any origin.
func (h *Hub) ServeWS(allowedOrigins []string) http.HandlerFunc {
	up := upgrader
	up.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			hub:  h,
			conn: conn,
			send: make(chan []byte, 256),
		}
		h.register <- client

		go client.writePump()
		go client.readPump()
	}
}
