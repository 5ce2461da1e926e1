package agents

import (
	"testing"

	"github.com/talgya/crisis-grid/internal/entropy"
	"github.com/talgya/crisis-grid/internal/world"
)

func TestSpawnTeam(t *testing.T) {
	sp := NewSpawner(DefaultSpawnConfig(), entropy.New(1))
	depot := world.Pos(1, 1)
	team := sp.SpawnTeam(depot)

	kinds := []Kind{KindDrone, KindMedic, KindMedic, KindTruck}
	if len(team) != len(kinds) {
		t.Fatalf("team size = %d", len(team))
	}
	for i, a := range team {
		if a.Kind != kinds[i] {
			t.Errorf("team[%d] kind = %v, want %v", i, a.Kind, kinds[i])
		}
		if a.ID != AgentID(i+1) {
			t.Errorf("team[%d] id = %v", i, a.ID)
		}
		if a.Position != depot {
			t.Errorf("team[%d] at %s, want depot", i, a.Position)
		}
	}
	if team[0].BatteryLevel != 80 || team[3].ResourceLevel != 30 || team[3].Mode != ModeWater {
		t.Fatalf("drone battery=%d truck level=%d mode=%v", team[0].BatteryLevel, team[3].ResourceLevel, team[3].Mode)
	}
}

func TestSpawnTeamNegativeSettings(t *testing.T) {
	cfg := DefaultSpawnConfig()
	cfg.Drones, cfg.Medics = 1, -5
	cfg.DroneBattery, cfg.TruckMax = -3, -2
	team := NewSpawner(cfg, entropy.New(1)).SpawnTeam(world.Pos(0, 0))
	if len(team) != 2 {
		t.Fatalf("team size = %d, want one drone and one truck", len(team))
	}
	if d := team[0]; d.BatteryLevel != 0 || d.BatteryMax != 0 {
		t.Fatalf("drone battery = %d/%d", d.BatteryLevel, d.BatteryMax)
	}
	if tr := team[1]; tr.Kind != KindTruck || tr.ResourceLevel != 0 || tr.ResourceMax != 0 {
		t.Fatalf("truck = %+v", tr)
	}
}

func TestPlaceSurvivorsEligibleTerrain(t *testing.T) {
	g := world.NewGrid(6, 6, world.CellHospital)
	g.Set(world.Pos(2, 3), world.CellBuilding)
	g.Set(world.Pos(4, 1), world.CellRubble)

	sp := NewSpawner(DefaultSpawnConfig(), entropy.New(9))
	survivors := sp.PlaceSurvivors(g, 5)
	if len(survivors) == 0 {
		t.Fatal("no survivors placed")
	}
	for _, s := range survivors {
		if !Eligible(g.At(s.Position)) {
			t.Errorf("survivor %v on %v", s.ID, g.At(s.Position))
		}
		if s.Deadline < 120 || s.Deadline > 260 {
			t.Errorf("deadline %d outside [120,260]", s.Deadline)
		}
	}
}

func TestPlaceSurvivorsGivesUp(t *testing.T) {
	g := world.NewGrid(3, 3, world.CellFire)
	sp := NewSpawner(DefaultSpawnConfig(), entropy.New(9))
	if got := sp.PlaceSurvivors(g, 4); len(got) != 0 {
		t.Fatalf("placed %d survivors on an all-fire map", len(got))
	}
}

func TestPlaceSurvivorsDeterministic(t *testing.T) {
	g := world.NewGrid(10, 10, world.CellRoad)
	a := NewSpawner(DefaultSpawnConfig(), entropy.New(5)).PlaceSurvivors(g, 8)
	b := NewSpawner(DefaultSpawnConfig(), entropy.New(5)).PlaceSurvivors(g, 8)
	for i := range a {
		if a[i].Position != b[i].Position || a[i].Deadline != b[i].Deadline {
			t.Fatalf("survivor %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
