package engine

import (
	"testing"

	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/world"
)

// quietParams disables the stochastic environment so tests control the grid.
func quietParams() Params {
	p := DefaultParams()
	p.PFireSpread = 0
	p.PAftershock = 0
	return p
}

func newSim(t *testing.T, l world.Layout, p Params) *Simulation {
	t.Helper()
	s, err := NewSimulation(l, p)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	return s
}

func assertBalanced(t *testing.T, s *Simulation) {
	t.Helper()
	if c := s.Census(); !c.Balanced() {
		t.Fatalf("tick %d: census unbalanced: %+v", s.CurrentTick(), c)
	}
}

// corridor is depot, road, hospital in a row: the single survivor always lands on the road.
func corridor() world.Layout {
	return world.Layout{
		Width:     3,
		Height:    1,
		Depot:     world.Pos(0, 0),
		Hospitals: []world.Position{world.Pos(2, 0)},
		Survivors: 1,
	}
}

func TestNewSimulationSpawns(t *testing.T) {
	s := newSim(t, corridor(), quietParams())

	if s.TotalSpawned != 1 {
		t.Fatalf("TotalSpawned = %d", s.TotalSpawned)
	}
	kinds := []agents.Kind{agents.KindDrone, agents.KindMedic, agents.KindMedic, agents.KindTruck, agents.KindSurvivor}
	all := s.Agents.All()
	if len(all) != len(kinds) {
		t.Fatalf("agents = %d", len(all))
	}
	for i, a := range all {
		if a.Kind != kinds[i] {
			t.Errorf("agent %d kind = %v, want %v", i, a.Kind, kinds[i])
		}
	}
	if all[4].Position != world.Pos(1, 0) {
		t.Fatalf("survivor at %s", all[4].Position)
	}
	if s.Phase() != PhaseIdle {
		t.Fatalf("phase = %v", s.Phase())
	}
	assertBalanced(t, s)
}

func TestNewSimulationRejectsBadLayout(t *testing.T) {
	if _, err := NewSimulation(world.Layout{Width: 3, Height: 3, Depot: world.Pos(3, 3)}, DefaultParams()); err == nil {
		t.Fatal("expected error for depot outside grid")
	}
}

func TestNewSimulationNegativeTeam(t *testing.T) {
	p := quietParams()
	p.Spawn.Medics = -5
	p.Spawn.DroneBattery = -3
	p.Spawn.TruckMax = -2
	s := newSim(t, corridor(), p)
	if got := len(s.Agents.OfKind(agents.KindMedic)); got != 0 {
		t.Fatalf("medics = %d", got)
	}
	for _, a := range s.Agents.All() {
		if a.BatteryLevel < 0 || a.ResourceLevel < 0 {
			t.Fatalf("agent %v starts below zero: %+v", a.ID, a)
		}
	}
	s.Step(Plan{})
	assertBalanced(t, s)
}

func TestSurvivorDiesAtDeadline(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	survivor := s.Agents.OfKind(agents.KindSurvivor)[0]
	survivor.Deadline = 1

	res := s.Step(Plan{})

	if !survivor.Dead {
		t.Fatal("survivor not marked dead")
	}
	if s.Agents.Get(survivor.ID) != nil {
		t.Fatal("dead survivor still registered")
	}
	if res.Metrics.Deaths != 1 || len(res.Died) != 1 || res.Died[0] != survivor.ID {
		t.Fatalf("deaths=%d died=%v", res.Metrics.Deaths, res.Died)
	}
	assertBalanced(t, s)
}

func TestTickEventsSurviveTrim(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	for i := 0; i < maxEvents; i++ {
		s.Events = append(s.Events, Event{Tick: 0, Description: "filler", Category: "fire"})
	}
	s.Agents.OfKind(agents.KindSurvivor)[0].Deadline = 1

	res := s.Step(Plan{})

	if len(s.Events) != maxEvents {
		t.Fatalf("log length = %d", len(s.Events))
	}
	if len(res.Events) != 1 || res.Events[0].Category != "death" || res.Events[0].Tick != 1 {
		t.Fatalf("tick events = %+v", res.Events)
	}
	if again := s.Step(Plan{}); len(again.Events) != 0 {
		t.Fatalf("quiet tick reported events: %+v", again.Events)
	}
}

func TestRescueFlow(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	medic := s.Agents.OfKind(agents.KindMedic)[0]
	survivor := s.Agents.OfKind(agents.KindSurvivor)[0]

	script := []agents.Command{
		agents.Move(medic.ID, world.Pos(1, 0)),
		agents.Act(medic.ID, agents.ActPickupSurvivor),
		agents.Move(medic.ID, world.Pos(2, 0)),
		agents.Act(medic.ID, agents.ActDropAtHospital),
	}
	for _, cmd := range script {
		s.Step(Plan{Commands: []agents.Command{cmd}})
		assertBalanced(t, s)
	}

	if s.Agents.Get(survivor.ID) != nil {
		t.Fatal("picked survivor still registered")
	}
	snap := s.Metrics.Snapshot()
	if snap.Rescued != 1 {
		t.Fatalf("rescued = %d", snap.Rescued)
	}
	if snap.AvgRescueTime != 4 {
		t.Fatalf("avg rescue time = %v, want 4", snap.AvgRescueTime)
	}
	if medic.Carrying {
		t.Fatal("medic still carrying")
	}
	if !s.Census().Resolved() {
		t.Fatalf("census not resolved: %+v", s.Census())
	}
}

func TestCarriedSurvivorCounted(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	medic := s.Agents.OfKind(agents.KindMedic)[0]
	s.Step(Plan{Commands: []agents.Command{agents.Move(medic.ID, world.Pos(1, 0))}})
	s.Step(Plan{Commands: []agents.Command{agents.Act(medic.ID, agents.ActPickupSurvivor)}})

	c := s.Census()
	if c.Carried != 1 || c.Active != 0 {
		t.Fatalf("census = %+v", c)
	}
	assertBalanced(t, s)
}

func TestHospitalServiceCapPerTick(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	h := world.Pos(2, 0)
	for _, id := range []agents.AgentID{101, 102, 103, 104, 105} {
		s.Hospitals.Enqueue(h, id)
	}

	res := s.Step(Plan{})

	if len(res.Admitted) != 2 || res.Metrics.Rescued != 2 {
		t.Fatalf("admitted=%d rescued=%d", len(res.Admitted), res.Metrics.Rescued)
	}
	got := s.Hospitals.Waiting(h)
	want := []agents.AgentID{103, 104, 105}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue = %v, want %v", got, want)
		}
	}
}

func TestOverflowRecordedThroughStep(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	h := world.Pos(2, 0)
	for i := 0; i < 13; i++ {
		s.Hospitals.Enqueue(h, agents.AgentID(1000+i))
	}
	res := s.Step(Plan{})
	if res.Metrics.HospitalOverflowEvents != 1 || len(res.Overflows) != 1 {
		t.Fatalf("overflow events = %d", res.Metrics.HospitalOverflowEvents)
	}
	res = s.Step(Plan{})
	if res.Metrics.HospitalOverflowEvents != 1 {
		t.Fatalf("queue of %d after service still counted overflow", s.Hospitals.QueueLen(h))
	}
}

func TestUnknownAndSurvivorCommandsDropped(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	survivor := s.Agents.OfKind(agents.KindSurvivor)[0]
	before := survivor.Position

	res := s.Step(Plan{Commands: []agents.Command{
		agents.Move(999, world.Pos(0, 0)),
		agents.Move(survivor.ID, world.Pos(0, 0)),
	}})
	if res.Unmatched != 2 {
		t.Fatalf("unmatched = %d", res.Unmatched)
	}
	if survivor.Position != before {
		t.Fatal("survivor moved by command")
	}
}

func TestLastCommandWins(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	truck := s.Agents.OfKind(agents.KindTruck)[0]
	s.Step(Plan{Commands: []agents.Command{
		agents.Move(truck.ID, world.Pos(1, 0)),
		agents.Move(truck.ID, world.Pos(2, 0)),
	}})
	if truck.Position != world.Pos(2, 0) {
		t.Fatalf("truck at %s", truck.Position)
	}
	if truck.Pending != nil {
		t.Fatal("pending command survived the tick")
	}
}

func TestSequentialVisibilityWithinTick(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	medics := s.Agents.OfKind(agents.KindMedic)
	first, second := medics[0], medics[1]
	first.Position = world.Pos(1, 0)
	second.Position = world.Pos(1, 0)

	// Both medics try to pick the only survivor; the earlier-registered one wins.
	s.Step(Plan{Commands: []agents.Command{
		agents.Act(second.ID, agents.ActPickupSurvivor),
		agents.Act(first.ID, agents.ActPickupSurvivor),
	}})
	if !first.Carrying || second.Carrying {
		t.Fatalf("first carrying=%v second carrying=%v", first.Carrying, second.Carrying)
	}
	assertBalanced(t, s)
}

func TestTruckCountersAndDroneDrain(t *testing.T) {
	l := world.Layout{
		Width:  4,
		Height: 1,
		Depot:  world.Pos(0, 0),
		Fires:  []world.Position{world.Pos(1, 0)},
		Rubble: []world.Position{world.Pos(2, 0)},
	}
	s := newSim(t, l, quietParams())
	truck := s.Agents.OfKind(agents.KindTruck)[0]
	drone := s.Agents.OfKind(agents.KindDrone)[0]

	plans := [][]agents.Command{
		{agents.Move(truck.ID, world.Pos(1, 0))},
		{agents.Act(truck.ID, agents.ActExtinguishFire)},
		{agents.Move(truck.ID, world.Pos(2, 0))},
		{agents.Act(truck.ID, agents.ActClearRubble)},
	}
	var res TickResult
	for _, cmds := range plans {
		res = s.Step(Plan{Commands: cmds})
	}
	if res.Metrics.FiresExtinguished != 1 || res.Metrics.RoadsCleared != 1 {
		t.Fatalf("fires=%d roads=%d", res.Metrics.FiresExtinguished, res.Metrics.RoadsCleared)
	}
	if truck.ResourceLevel != truck.ResourceMax-2 {
		t.Fatalf("truck level = %d", truck.ResourceLevel)
	}
	if drone.BatteryLevel != drone.BatteryMax-4 || res.Metrics.EnergyUsed != 4 {
		t.Fatalf("battery=%d energy=%d", drone.BatteryLevel, res.Metrics.EnergyUsed)
	}

	s.Step(Plan{Commands: []agents.Command{agents.Act(drone.ID, agents.ActRecharge)}})
	if drone.BatteryLevel != drone.BatteryMax {
		t.Fatalf("battery after recharge = %d", drone.BatteryLevel)
	}
}

func TestPlannerCountersFolded(t *testing.T) {
	s := newSim(t, corridor(), quietParams())
	res := s.Step(Plan{ToolCalls: 2, InvalidJSON: 1, Replans: 1})
	if res.Metrics.ToolCalls != 2 || res.Metrics.InvalidJSON != 1 || res.Metrics.Replans != 1 {
		t.Fatalf("metrics = %+v", res.Metrics)
	}
	if res.Tick != 1 || s.CurrentTick() != 1 {
		t.Fatalf("tick = %d / %d", res.Tick, s.CurrentTick())
	}
}

// randomPlan issues arbitrary, often invalid, commands for every responder.
func randomPlan(s *Simulation, rng *entropy.Source) Plan {
	var cmds []agents.Command
	w, h := s.Grid.Width(), s.Grid.Height()
	for _, a := range s.Agents.All() {
		if !a.Responder() {
			continue
		}
		if rng.Chance(0.5) {
			cmds = append(cmds, agents.Move(a.ID, world.Pos(rng.Intn(w+2)-1, rng.Intn(h+2)-1)))
		} else {
			cmds = append(cmds, agents.Act(a.ID, agents.Actions[rng.Intn(len(agents.Actions))]))
		}
	}
	return Plan{Commands: cmds}
}

func stressLayout() world.Layout {
	cfg := world.DefaultGenConfig()
	cfg.Width, cfg.Height = 8, 8
	cfg.Survivors = 25
	return world.Generate(cfg)
}

func TestRandomCommandsKeepWorldConsistent(t *testing.T) {
	p := DefaultParams()
	p.PFireSpread = 0.3
	p.PAftershock = 0.5
	p.Spawn.Medics = 4
	s := newSim(t, stressLayout(), p)
	rng := entropy.New(99)

	for i := 0; i < 300; i++ {
		s.Step(randomPlan(s, rng))
		assertBalanced(t, s)

		carried := make(map[agents.AgentID]bool)
		for _, a := range s.Agents.All() {
			if !s.Grid.InBounds(a.Position) {
				t.Fatalf("agent %s out of bounds at %s", a.ID, a.Position)
			}
			switch a.Kind {
			case agents.KindTruck:
				if a.ResourceLevel < 0 || a.ResourceLevel > a.ResourceMax {
					t.Fatalf("truck level %d outside [0,%d]", a.ResourceLevel, a.ResourceMax)
				}
			case agents.KindDrone:
				if a.BatteryLevel < 0 || a.BatteryLevel > a.BatteryMax {
					t.Fatalf("battery %d outside [0,%d]", a.BatteryLevel, a.BatteryMax)
				}
			case agents.KindMedic:
				if a.Carrying {
					if carried[a.CarriedID] {
						t.Fatalf("survivor %s carried by two medics", a.CarriedID)
					}
					carried[a.CarriedID] = true
				}
			case agents.KindSurvivor:
				if !a.Active() {
					t.Fatalf("resolved survivor %s left in registry", a.ID)
				}
			}
		}
		for _, q := range s.Hospitals.Queues() {
			for _, id := range q.Waiting {
				if carried[id] || s.Agents.Get(id) != nil {
					t.Fatalf("survivor %s is both enqueued and elsewhere", id)
				}
			}
		}
	}
}

func TestDeterministicRuns(t *testing.T) {
	run := func() *Simulation {
		p := DefaultParams()
		p.PFireSpread = 0.2
		p.PAftershock = 0.3
		s := newSim(t, stressLayout(), p)
		rng := entropy.New(7)
		for i := 0; i < 120; i++ {
			s.Step(randomPlan(s, rng))
		}
		return s
	}
	a, b := run(), run()

	if !a.Grid.Equal(b.Grid) {
		t.Fatal("final grids differ")
	}
	if a.Metrics.Snapshot() != b.Metrics.Snapshot() {
		t.Fatalf("metrics differ:\n%+v\n%+v", a.Metrics.Snapshot(), b.Metrics.Snapshot())
	}
	if a.Agents.Len() != b.Agents.Len() {
		t.Fatalf("agent counts differ: %d vs %d", a.Agents.Len(), b.Agents.Len())
	}
	for i, x := range a.Agents.All() {
		y := b.Agents.All()[i]
		if *x != *y {
			t.Fatalf("agent %d differs: %+v vs %+v", i, x, y)
		}
	}
}

func TestFireSpreadThroughStep(t *testing.T) {
	l := world.Layout{
		Width:  5,
		Height: 5,
		Depot:  world.Pos(0, 0),
		Fires:  []world.Position{world.Pos(2, 2)},
	}
	p := quietParams()
	p.PFireSpread = 1.0
	s := newSim(t, l, p)

	res := s.Step(Plan{})
	if len(res.Ignited) != 4 {
		t.Fatalf("ignited = %v", res.Ignited)
	}
	for _, n := range world.Pos(2, 2).Neighbors4() {
		if s.Grid.At(n) != world.CellFire {
			t.Errorf("%s = %v", n, s.Grid.At(n))
		}
	}
	if s.Grid.At(world.Pos(2, 2)) != world.CellFire {
		t.Error("origin fire went out")
	}
}
