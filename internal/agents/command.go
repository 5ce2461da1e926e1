package agents

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/talgya/crisis-grid/internal/world"
)

// CommandType distinguishes moves from actions.
type CommandType uint8

const (
	CmdMove CommandType = iota + 1
	CmdAct
)

func (t CommandType) String() string {
	switch t {
	case CmdMove:
		return "move"
	case CmdAct:
		return "act"
	}
	return "unknown"
}

// ActionKind names an in-place action.
type ActionKind string

const (
	ActPickupSurvivor ActionKind = "pickup_survivor"
	ActDropAtHospital ActionKind = "drop_at_hospital"
	ActExtinguishFire ActionKind = "extinguish_fire"
	ActClearRubble    ActionKind = "clear_rubble"
	ActRecharge       ActionKind = "recharge"
	ActResupply       ActionKind = "resupply"
)

// Actions lists every valid action in wire order.
var Actions = []ActionKind{
	ActPickupSurvivor,
	ActDropAtHospital,
	ActExtinguishFire,
	ActClearRubble,
	ActRecharge,
	ActResupply,
}

// Valid reports whether a is one of the known actions.
func (a ActionKind) Valid() bool {
	for _, k := range Actions {
		if a == k {
			return true
		}
	}
	return false
}

// Command is one instruction for one agent, consumed within a single tick.
// To is meaningful for moves, Action for acts.
type Command struct {
	AgentID AgentID
	Type    CommandType
	To      world.Position
	Action  ActionKind
}

// Move builds a move command.
func Move(id AgentID, to world.Position) Command {
	return Command{AgentID: id, Type: CmdMove, To: to}
}

// Act builds an action command.
func Act(id AgentID, action ActionKind) Command {
	return Command{AgentID: id, Type: CmdAct, Action: action}
}

// MarshalJSON encodes the command in planner wire format.
func (c Command) MarshalJSON() ([]byte, error) {
	w := RawCommand{AgentID: WireID(c.AgentID.String()), Type: c.Type.String()}
	switch c.Type {
	case CmdMove:
		w.To = []float64{float64(c.To.X), float64(c.To.Y)}
	case CmdAct:
		w.ActionName = string(c.Action)
	}
	return json.Marshal(w)
}

// WireID accepts an agent id given as either a JSON string or a JSON number.
type WireID string

// UnmarshalJSON implements json.Unmarshaler.
func (w *WireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = WireID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// Anything else (objects, bools, null) is treated as missing.
		*w = ""
		return nil
	}
	*w = WireID(n.String())
	return nil
}

// RawCommand is a planner-supplied command before normalization.
type RawCommand struct {
	AgentID    WireID    `json:"agent_id"`
	Type       string    `json:"type"`
	To         []float64 `json:"to,omitempty"`
	ActionName string    `json:"action_name,omitempty"`
}

// Envelope is the top-level planner output: {"commands": [...]}.
type Envelope struct {
	Commands []json.RawMessage `json:"commands"`
}

// ErrNoCommands is returned when planner output lacks a "commands" list.
var ErrNoCommands = errors.New("planner output has no commands list")

// ParseCommands decodes planner output and normalizes it. A decode failure or a
// missing commands list is an error; individual malformed entries are dropped and
// counted instead.
func ParseCommands(data []byte) ([]Command, int, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, 0, fmt.Errorf("decode plan: %w", err)
	}
	if _, ok := probe["commands"]; !ok {
		return nil, 0, ErrNoCommands
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, fmt.Errorf("decode commands: %w", err)
	}

	raws := make([]RawCommand, 0, len(env.Commands))
	dropped := 0
	for _, msg := range env.Commands {
		var rc RawCommand
		if err := json.Unmarshal(msg, &rc); err != nil {
			dropped++
			continue
		}
		raws = append(raws, rc)
	}
	cmds, bad := Normalize(raws)
	return cmds, dropped + bad, nil
}

// Normalize converts raw commands into typed commands, dropping any entry that
// is structurally invalid. It returns the kept commands and the number dropped.
func Normalize(raws []RawCommand) ([]Command, int) {
	out := make([]Command, 0, len(raws))
	dropped := 0
	for _, rc := range raws {
		cmd, ok := normalizeOne(rc)
		if !ok {
			dropped++
			continue
		}
		out = append(out, cmd)
	}
	return out, dropped
}

func normalizeOne(rc RawCommand) (Command, bool) {
	id, ok := ParseAgentID(string(rc.AgentID))
	if !ok {
		return Command{}, false
	}
	switch strings.TrimSpace(rc.Type) {
	case "move":
		if len(rc.To) != 2 {
			return Command{}, false
		}
		x, okX := coordinate(rc.To[0])
		y, okY := coordinate(rc.To[1])
		if !okX || !okY {
			return Command{}, false
		}
		return Move(id, world.Pos(x, y)), true
	case "act":
		action := ActionKind(strings.TrimSpace(rc.ActionName))
		if !action.Valid() {
			return Command{}, false
		}
		return Act(id, action), true
	}
	return Command{}, false
}

// coordinate accepts only whole numbers that fit in an int32; anything else is
// not a cell a planner could have meant.
func coordinate(v float64) (int, bool) {
	if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}
