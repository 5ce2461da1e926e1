package agents

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/talgya/crisis-grid/internal/world"
)

func TestParseCommands(t *testing.T) {
	input := `{"commands":[
		{"agent_id":"1","type":"move","to":[2,3]},
		{"agent_id":2,"type":"act","action_name":"pickup_survivor"},
		{"agent_id":"3","type":"act","action_name":"teleport"},
		{"agent_id":"4","type":"move","to":[1]},
		{"agent_id":"","type":"move","to":[0,0]},
		{"agent_id":"drone-1","type":"move","to":[0,0]},
		{"agent_id":"5","type":"fly"},
		"not an object",
		{"agent_id":"6","type":"act","action_name":" recharge "}
	]}`

	cmds, dropped, err := ParseCommands([]byte(input))
	if err != nil {
		t.Fatalf("ParseCommands: %v", err)
	}
	want := []Command{
		Move(1, world.Pos(2, 3)),
		Act(2, ActPickupSurvivor),
		Act(6, ActRecharge),
	}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands %+v, want %d", len(cmds), cmds, len(want))
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("cmd[%d] = %+v, want %+v", i, cmds[i], want[i])
		}
	}
	if dropped != 6 {
		t.Errorf("dropped = %d, want 6", dropped)
	}
}

func TestNormalizeRejectsNonCellTargets(t *testing.T) {
	raws := []RawCommand{
		{AgentID: "1", Type: "move", To: []float64{1.9, 0}},
		{AgentID: "1", Type: "move", To: []float64{0, -0.5}},
		{AgentID: "1", Type: "move", To: []float64{math.NaN(), 0}},
		{AgentID: "1", Type: "move", To: []float64{1e30, 0}},
		{AgentID: "1", Type: "move", To: []float64{0, math.Inf(-1)}},
		{AgentID: "1", Type: "move", To: []float64{2, -1}},
	}
	cmds, dropped := Normalize(raws)
	if dropped != 5 {
		t.Fatalf("dropped = %d, want 5", dropped)
	}
	if len(cmds) != 1 || cmds[0] != Move(1, world.Pos(2, -1)) {
		t.Fatalf("cmds = %+v", cmds)
	}
}

func TestParseCommandsRejectsEnvelope(t *testing.T) {
	if _, _, err := ParseCommands([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, _, err := ParseCommands([]byte(`{"plan":[]}`)); !errors.Is(err, ErrNoCommands) {
		t.Fatalf("err = %v, want ErrNoCommands", err)
	}
	cmds, dropped, err := ParseCommands([]byte(`{"commands":[]}`))
	if err != nil || len(cmds) != 0 || dropped != 0 {
		t.Fatalf("empty plan: cmds=%v dropped=%d err=%v", cmds, dropped, err)
	}
}

func TestCommandWireRoundTrip(t *testing.T) {
	cmds := []Command{Move(7, world.Pos(4, 1)), Act(8, ActClearRubble)}
	b, err := json.Marshal(map[string]any{"commands": cmds})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, dropped, err := ParseCommands(b)
	if err != nil || dropped != 0 {
		t.Fatalf("ParseCommands: dropped=%d err=%v", dropped, err)
	}
	for i := range cmds {
		if back[i] != cmds[i] {
			t.Errorf("cmd[%d] = %+v, want %+v", i, back[i], cmds[i])
		}
	}
}
