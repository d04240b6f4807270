package entropy

import "testing"

func TestSeedIsStable(t *testing.T) {
	a := Seed("camp-1", 7, StreamMechanics)
	b := Seed("camp-1", 7, StreamMechanics)
	if a != b {
		t.Fatalf("seed = %d, want %d", b, a)
	}
	if a < 0 {
		t.Fatalf("seed = %d, want non-negative", a)
	}
}

func TestSeedVariesByInput(t *testing.T) {
	base := Seed("camp-1", 7, StreamMechanics)
	if Seed("camp-2", 7, StreamMechanics) == base {
		t.Fatal("campaign id does not affect seed")
	}
	if Seed("camp-1", 8, StreamMechanics) == base {
		t.Fatal("turn number does not affect seed")
	}
	if Seed("camp-1", 7, StreamWorld) == base {
		t.Fatal("stream does not affect seed")
	}
}

func TestD20Range(t *testing.T) {
	rng := New("camp-1", 1, StreamMechanics)
	for i := 0; i < 500; i++ {
		r := D20(rng)
		if r < 1 || r > 20 {
			t.Fatalf("roll = %d, want 1..20", r)
		}
	}
}

func TestSequencesRepeat(t *testing.T) {
	a := New("camp-1", 3, StreamPresence)
	b := New("camp-1", 3, StreamPresence)
	for i := 0; i < 20; i++ {
		if x, y := a.Int63(), b.Int63(); x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
	}
}
