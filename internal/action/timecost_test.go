package action

import "testing"

func TestTimeCost(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindAttack, 10},
		{KindTravel, 120},
		{KindRest, 240},
		{KindDialogue, 15},
		{KindMeta, 0},
		{Kind("juggle"), 15},
	}
	for _, tt := range tests {
		if got := TimeCost(tt.kind); got != tt.want {
			t.Fatalf("TimeCost(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestEveryActionKindHasNonNegativeCost(t *testing.T) {
	for _, k := range ActionKinds {
		if TimeCost(k) < 0 {
			t.Fatalf("TimeCost(%s) negative", k)
		}
	}
}

func TestTraveled(t *testing.T) {
	if (Outcome{}).Traveled() {
		t.Fatal("zero outcome traveled")
	}
	if (Outcome{Travel: &Travel{From: "a", To: "a"}}).Traveled() {
		t.Fatal("same-location travel counted")
	}
	if !(Outcome{Travel: &Travel{From: "a", To: "b"}}).Traveled() {
		t.Fatal("a→b not counted")
	}
}

func TestToneAndRiskValid(t *testing.T) {
	for _, tone := range Tones {
		if !tone.Valid() {
			t.Fatalf("%s invalid", tone)
		}
	}
	if Tone("HEROIC").Valid() {
		t.Fatal("HEROIC accepted")
	}
	if Risk("EXTREME").Valid() {
		t.Fatal("EXTREME accepted")
	}
}
