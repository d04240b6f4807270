package event

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/talgya/chronicle/internal/social"
)

func TestDecodeUnknownTypeNeverFails(t *testing.T) {
	raw := []byte(`{"omen":"red moon"}`)
	p, err := Decode("celestial_omen", raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, ok := p.(Unknown)
	if !ok {
		t.Fatalf("payload = %T, want Unknown", p)
	}
	if u.EventType() != "celestial_omen" {
		t.Fatalf("type = %s, want celestial_omen", u.EventType())
	}
	out, err := Encode(u)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatalf("encoded = %s, want %s", out, raw)
	}
}

func TestDecodeKnownTypeReturnsValue(t *testing.T) {
	raw, err := Encode(RelationshipMilestone{
		CompanionID: "lyra",
		Milestone:   social.MilestoneCompanionRequest,
		Stage:       social.StageTrusted,
		Affinity:    31,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p, err := Decode(TypeRelationshipMilestone, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := p.(RelationshipMilestone)
	if !ok {
		t.Fatalf("payload = %T, want RelationshipMilestone", p)
	}
	if m.Affinity != 31 || m.Milestone != social.MilestoneCompanionRequest {
		t.Fatalf("payload = %+v", m)
	}
}

func TestDecodeMalformedKnownPayload(t *testing.T) {
	if _, err := Decode(TypeMove, []byte(`{"to":`)); err == nil {
		t.Fatal("expected error for malformed move payload")
	}
}

func TestEveryRegisteredTypeMatchesItsPayload(t *testing.T) {
	for typ, ctor := range registry {
		if got := ctor().EventType(); got != typ {
			t.Fatalf("registry[%s] builds %s", typ, got)
		}
		if !typ.Known() {
			t.Fatalf("%s not known", typ)
		}
	}
}

func TestDraftHelpers(t *testing.T) {
	d := Hidden(WorldTimeAdvance{From: 0, To: 15, Minutes: 15})
	if !d.Hidden || d.Type() != TypeWorldTimeAdvance {
		t.Fatalf("draft = %+v", d)
	}
	r := PublicRumor(Rumor{Text: "the pass is closed"})
	if !r.PublicRumor || r.Hidden {
		t.Fatalf("rumor draft = %+v", r)
	}
}

func TestEventJSONKeepsTypedPayload(t *testing.T) {
	in := Event{ID: 7, CampaignID: "c1", TurnNumber: 2, Type: TypeMove, Payload: Move{CharacterID: "pc", From: "flagon", To: "market"}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Event
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	mv, ok := out.Payload.(Move)
	if !ok || mv.To != "market" || out.ID != 7 || out.TurnNumber != 2 {
		t.Fatalf("event = %+v", out)
	}
}
