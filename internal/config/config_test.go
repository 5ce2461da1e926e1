package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/crisis-grid/internal/agents"
	"github.com/talgya/crisis-grid/internal/engine"
	"github.com/talgya/crisis-grid/internal/world"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeFile(t, `
map:
  name: tiny
  width: 6
  height: 4
  depot: [0, 0]
  hospitals: [[5, 3]]
  rubble: [[2, 2]]
  initial_fires: [[3, 1]]
  buildings: [[4, 0]]
  survivors: 3
sim:
  seed: 7
  p_fire_spread: 0.5
  medics: 3
  truck_mode: tools
run:
  ticks: 40
  strategy: react
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	l := f.Layout()
	if l.Name != "tiny" || l.Width != 6 || l.Height != 4 || l.Survivors != 3 {
		t.Fatalf("layout = %+v", l)
	}
	if l.Depot != world.Pos(0, 0) {
		t.Fatalf("depot = %s", l.Depot)
	}
	if len(l.Hospitals) != 1 || l.Hospitals[0] != world.Pos(5, 3) {
		t.Fatalf("hospitals = %v", l.Hospitals)
	}
	if len(l.Fires) != 1 || l.Fires[0] != world.Pos(3, 1) {
		t.Fatalf("fires = %v", l.Fires)
	}

	p := f.Params(engine.DefaultParams())
	if p.Seed != 7 || p.PFireSpread != 0.5 || p.Spawn.Medics != 3 || p.Spawn.TruckMode != agents.ModeTools {
		t.Fatalf("params = %+v", p)
	}
	if p.PAftershock != 0.02 || p.HospitalServiceRate != 2 || p.Spawn.DroneBattery != 80 {
		t.Fatalf("unset params lost their defaults: %+v", p)
	}

	if f.Run.Ticks != 40 || f.Run.Strategy != "react" {
		t.Fatalf("run = %+v", f.Run)
	}
	if !f.Run.StopWhenResolved || f.Run.ReportEvery != 50 {
		t.Fatalf("run defaults lost: %+v", f.Run)
	}
}

func TestLayoutDefaults(t *testing.T) {
	f := Default()
	l := f.Layout()
	if l.Depot != world.DefaultDepot {
		t.Fatalf("depot = %s", l.Depot)
	}
	if l.Survivors != DefaultSurvivors {
		t.Fatalf("survivors = %d", l.Survivors)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestZeroSurvivorsKept(t *testing.T) {
	f, err := Load(writeFile(t, "map:\n  width: 3\n  height: 3\n  survivors: 0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.Layout().Survivors; got != 0 {
		t.Fatalf("survivors = %d, want explicit 0", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero width", "map:\n  width: 0\n  height: 5\n", "dimensions"},
		{"negative survivors", "map:\n  survivors: -1\n", "survivors"},
		{"probability", "sim:\n  p_aftershock: 1.5\n", "p_aftershock"},
		{"truck mode", "sim:\n  truck_mode: foam\n", "truck_mode"},
		{"deadlines", "sim:\n  deadline_min: 50\n  deadline_max: 10\n", "deadline_min"},
		{"sensor", "run:\n  sensor_fn: 2\n", "sensor"},
		{"negative medics", "sim:\n  medics: -5\n", "medics"},
		{"negative drones", "sim:\n  drones: -1\n", "drones"},
		{"negative trucks", "sim:\n  trucks: -2\n", "trucks"},
		{"negative battery", "sim:\n  drone_battery: -3\n", "drone_battery"},
		{"negative resource", "sim:\n  truck_resource: -2\n", "truck_resource"},
		{"negative threshold", "sim:\n  overflow_threshold: -1\n", "overflow_threshold"},
		{"negative service rate", "sim:\n  hospital_service_rate: -1\n", "hospital_service_rate"},
		{"negative deadline", "sim:\n  deadline_min: -4\n  deadline_max: -1\n", "deadline_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBadYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "map: [unclosed\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestShippedScenarioLoads(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "configs", "city_small.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := engine.NewSimulation(f.Layout(), f.Params(engine.DefaultParams())); err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
}
