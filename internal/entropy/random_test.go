package entropy

import "testing"

func TestSameSeedSameStream(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Float(), b.Float(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
	if a.Draws() != 100 {
		t.Fatalf("Draws() = %d, want 100", a.Draws())
	}
}

func TestDeriveIgnoresConsumedDraws(t *testing.T) {
	a := New(7)
	b := New(7)
	for i := 0; i < 10; i++ {
		a.Float()
	}
	da, db := a.Derive(StreamSensors), b.Derive(StreamSensors)
	if da.Float() != db.Float() {
		t.Fatal("derived streams diverged after parent draws")
	}
	if da.Seed() != 7+StreamSensors {
		t.Fatalf("derived seed = %d", da.Seed())
	}
}

func TestChanceExtremes(t *testing.T) {
	s := New(1)
	for i := 0; i < 50; i++ {
		if !s.Chance(1.0) {
			t.Fatal("Chance(1.0) returned false")
		}
		if s.Chance(0) {
			t.Fatal("Chance(0) returned true")
		}
	}
	if s.Draws() != 100 {
		t.Fatalf("Chance must draw once per call, got %d draws", s.Draws())
	}
}

func TestBetweenInclusive(t *testing.T) {
	s := New(3)
	seenLo, seenHi := false, false
	for i := 0; i < 2000; i++ {
		v := s.Between(1, 3)
		if v < 1 || v > 3 {
			t.Fatalf("Between(1,3) = %d", v)
		}
		seenLo = seenLo || v == 1
		seenHi = seenHi || v == 3
	}
	if !seenLo || !seenHi {
		t.Fatal("Between never hit an endpoint")
	}
	if got := s.Intn(0); got != 0 {
		t.Fatalf("Intn(0) = %d", got)
	}
}
