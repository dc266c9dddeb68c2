package gateway

import (
	"github.com/A2152225/MTGEDH-sub013/internal/game"
)

// Command types accepted over the socket.
const (
	CmdCreateGame     = "create_game"
	CmdJoinGame       = "join_game"
	CmdPassPriority   = "pass_priority"
	CmdNextStep       = "next_step"
	CmdPlayLand       = "play_land"
	CmdCastSpell      = "cast_spell"
	CmdCastCommander  = "cast_commander"
	CmdActivate       = "activate_ability"
	CmdResolveTop     = "resolve_top"
	CmdSubmitResponse = "submit_response"
	CmdMoveCard       = "move_card"
	CmdConcede        = "concede"
	CmdRollback       = "rollback"
	CmdResync         = "resync"
)

// Command is the client to server envelope. Type selects the engine
// operation; the remaining fields carry its arguments.
type Command struct {
	Type        string           `json:"type"`
	GameID      string           `json:"game_id,omitempty"`
	PlayerID    string           `json:"player_id,omitempty"`
	CardID      string           `json:"card_id,omitempty"`
	SourceID    string           `json:"source_id,omitempty"`
	Description string           `json:"description,omitempty"`
	StepID      string           `json:"step_id,omitempty"`
	Turn        int              `json:"turn,omitempty"`
	From        string           `json:"from,omitempty"`
	To          string           `json:"to,omitempty"`
	Selections  []string         `json:"selections,omitempty"`
	Targets     []game.TargetRef `json:"targets,omitempty"`
	Effect      *game.EffectSpec `json:"effect,omitempty"`
	Seed        int64            `json:"seed,omitempty"`
	Players     []PlayerSpec     `json:"players,omitempty"`
}

// PlayerSpec names one seat of a new game and the configured decklist
// it plays.
type PlayerSpec struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Deck string `json:"deck"`
}

// Server message types.
const (
	MsgGameState   = "game_state"
	MsgGameCreated = "game_created"
	MsgJoined      = "joined"
	MsgError       = "error"
)

// ServerMessage is the server to client envelope. Seq mirrors the
// state snapshot's sequence number so clients can spot a gap between
// consecutive deltas and issue a resync.
type ServerMessage struct {
	Type   string               `json:"type"`
	GameID string               `json:"game_id,omitempty"`
	Seq    int64                `json:"seq,omitempty"`
	State  *game.EngineGameView `json:"state,omitempty"`
	Error  *ErrorInfo           `json:"error,omitempty"`
}

// ErrorInfo carries a typed engine failure to the client.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
