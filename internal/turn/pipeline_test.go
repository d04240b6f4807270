package turn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/engine"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/llm"
	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/projection"
	"github.com/talgya/chronicle/internal/social"
)

func openStore(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(context.Background(), filepath.Join(t.TempDir(), "chronicle.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(t *testing.T, deps Deps, opts Options) (*Pipeline, *persistence.DB) {
	t.Helper()
	db := openStore(t)
	deps.Store = db
	deps.Logger = quietLogger()
	return New(deps, opts), db
}

func testSetup() Setup {
	return Setup{
		Title: "The Salt Road",
		Era:   "late empire",
		Player: PlayerSeed{
			Name: "Ari",
		},
		Companions: []CompanionSeed{
			{ID: "lyra", Name: "Lyra", Traits: social.Traits{Idealism: 2, Mercy: 1}, Affinity: 28},
		},
		NPCs: []NPCSeed{
			{ID: "bram", Name: "Bram", Role: "innkeeper", Summary: "keeps the Flagon", LocationID: "flagon"},
		},
	}
}

func create(t *testing.T, p *Pipeline, s Setup) persistence.ReadModel {
	t.Helper()
	m, err := p.CreateCampaign(context.Background(), s)
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return m
}

func execute(t *testing.T, p *Pipeline, id, input string) *Result {
	t.Helper()
	res, err := p.Execute(context.Background(), id, input)
	if err != nil {
		t.Fatalf("execute %q: %v", input, err)
	}
	return res
}

func eventsOfType(t *testing.T, db *persistence.DB, id string, typ event.Type) []event.Event {
	t.Helper()
	all, err := db.ListEvents(context.Background(), id, 0, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	var out []event.Event
	for _, e := range all {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func hasWarning(ws []Warning, code string) int {
	n := 0
	for _, w := range ws {
		if w.Code == code {
			n++
		}
	}
	return n
}

func TestSetupCommitsTurnZero(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	m := create(t, p, testSetup())

	if m.Campaign.Version != 1 || m.Campaign.NextTurnNumber != 1 {
		t.Fatalf("version %d next %d, want 1 and 1", m.Campaign.Version, m.Campaign.NextTurnNumber)
	}
	if m.Campaign.WorldTimeMinutes != DefaultStartMinutes {
		t.Fatalf("world time = %d", m.Campaign.WorldTimeMinutes)
	}
	if m.Player == nil || m.Player.Name != "Ari" || m.Player.Health != projection.DefaultHealth {
		t.Fatalf("player = %+v", m.Player)
	}
	if got := m.Doc.Companion("lyra"); got.Affinity != 28 || got.Stage != social.StageAlly {
		t.Fatalf("companion = %+v", got)
	}
	if len(m.Doc.ActiveFactions) == 0 {
		t.Fatal("no factions seeded")
	}
	for _, e := range eventsOfType(t, db, m.Campaign.ID, event.TypeCharacterCreated) {
		if e.TurnNumber != 0 {
			t.Fatalf("setup event on turn %d", e.TurnNumber)
		}
	}
}

func TestSetupRejectsMissingTitle(t *testing.T) {
	p, _ := newTestPipeline(t, Deps{}, Options{})
	s := testSetup()
	s.Title = " "
	if _, err := p.CreateCampaign(context.Background(), s); !errors.Is(err, ErrInvalidSetup) {
		t.Fatalf("err = %v, want ErrInvalidSetup", err)
	}
}

func TestTickBoundaryRunsSimulationOnce(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	s := testSetup()
	s.StartMinutes = 230
	id := create(t, p, s).Campaign.ID

	first := execute(t, p, id, `say "Evening, all."`)
	if first.WorldTime != 245 {
		t.Fatalf("world time = %d, want 245", first.WorldTime)
	}
	if !first.World.Ran || first.World.Trigger != engine.TriggerTick || first.World.TicksCrossed != 1 {
		t.Fatalf("sim = %+v", first.World)
	}
	second := execute(t, p, id, `say "Another round."`)
	if second.World.Ran {
		t.Fatalf("second turn simulated: %+v", second.World)
	}

	perTurn := map[int64]int{}
	for _, e := range eventsOfType(t, db, id, event.TypeFactionTick) {
		perTurn[e.TurnNumber]++
	}
	if perTurn[1] != 1 || perTurn[2] != 0 {
		t.Fatalf("faction ticks per turn = %v", perTurn)
	}
	m, err := db.LoadReadModel(context.Background(), id, 5)
	if err != nil {
		t.Fatal(err)
	}
	if m.Doc.SimLastTurn != 1 {
		t.Fatalf("sim last turn = %d", m.Doc.SimLastTurn)
	}
}

func TestDialogueRaisesAffinityAndFiresMilestoneOnce(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	id := create(t, p, testSetup()).Campaign.ID

	res := execute(t, p, id, `say "I'll help you, friend"`)
	if res.Intent.Category != action.CategoryDialogueOnly {
		t.Fatalf("category = %s", res.Intent.Category)
	}
	if len(res.Relationships) != 1 {
		t.Fatalf("updates = %+v", res.Relationships)
	}
	u := res.Relationships[0]
	if u.Delta != 3 || u.After.Affinity != 31 || u.After.Stage != social.StageTrusted {
		t.Fatalf("update = %+v", u)
	}

	execute(t, p, id, `say "I'll help you, friend"`)

	if n := len(eventsOfType(t, db, id, event.TypeRelationshipMilestone)); n != 1 {
		t.Fatalf("milestones = %d, want 1", n)
	}
	m, err := db.LoadReadModel(context.Background(), id, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Doc.Companion("lyra"); got.Affinity != 34 || !got.HasMilestone(social.MilestoneCompanionRequest) {
		t.Fatalf("companion = %+v", got)
	}
}

type stuckNarrator struct{ release chan struct{} }

func (n stuckNarrator) Narrate(ctx context.Context, _ llm.SceneContext) (string, error) {
	<-n.release
	return "too late", nil
}

func TestNarratorTimeoutFallsBack(t *testing.T) {
	n := stuckNarrator{release: make(chan struct{})}
	t.Cleanup(func() { close(n.release) })
	p, _ := newTestPipeline(t, Deps{Narrator: n}, Options{NarrationTimeout: 20 * time.Millisecond})
	id := create(t, p, testSetup()).Campaign.ID

	res := execute(t, p, id, "look around the room")
	if got := hasWarning(res.Warnings, WarnNarrationFallback); got != 1 {
		t.Fatalf("narration_fallback warnings = %d: %+v", got, res.Warnings)
	}
	if res.Narration == "" {
		t.Fatal("empty narration")
	}
	var found bool
	for _, e := range res.Events {
		if nar, ok := e.Payload.(event.Narration); ok {
			found = nar.Fallback && nar.Text == res.Narration
		}
	}
	if !found {
		t.Fatal("no fallback narration event")
	}
}

type fixedNarrator string

func (n fixedNarrator) Narrate(context.Context, llm.SceneContext) (string, error) {
	return string(n), nil
}

func TestNarratorTextIsCommitted(t *testing.T) {
	p, _ := newTestPipeline(t, Deps{Narrator: fixedNarrator("Lamplight pools on the worn boards.")}, Options{})
	id := create(t, p, testSetup()).Campaign.ID

	res := execute(t, p, id, `say "Quiet night."`)
	if res.Narration != "Lamplight pools on the worn boards." {
		t.Fatalf("narration = %q", res.Narration)
	}
	if hasWarning(res.Warnings, WarnNarrationFallback) != 0 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

type brokenSuggester struct{}

func (brokenSuggester) Suggest(context.Context, llm.SceneContext, int) ([]llm.Choice, error) {
	return nil, errors.New("model unavailable")
}

func TestChoicesAlwaysExactCount(t *testing.T) {
	p, _ := newTestPipeline(t, Deps{Suggester: brokenSuggester{}}, Options{ChoiceCount: 4})
	id := create(t, p, testSetup()).Campaign.ID

	res := execute(t, p, id, "search the cellar")
	if len(res.Choices) != 4 {
		t.Fatalf("choices = %d, want 4", len(res.Choices))
	}
	if hasWarning(res.Warnings, WarnSuggestionFallback) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	meta := execute(t, p, id, "/status")
	if len(meta.Choices) != 4 {
		t.Fatalf("meta choices = %d, want 4", len(meta.Choices))
	}
}

func TestVersionBumpsOncePerCommit(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	id := create(t, p, testSetup()).Campaign.ID

	inputs := []string{`say "Morning."`, "/status", "search the bar"}
	for i, in := range inputs {
		res := execute(t, p, id, in)
		if want := int64(i + 2); res.Version != want {
			t.Fatalf("turn %d version = %d, want %d", res.Turn, res.Version, want)
		}
		if res.Turn != int64(i+1) {
			t.Fatalf("turn = %d, want %d", res.Turn, i+1)
		}
	}
	c, err := db.Campaign(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if c.Version != 4 || c.NextTurnNumber != 4 {
		t.Fatalf("campaign = %+v", c)
	}
}

func TestMetaTurnCostsNoTime(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	m := create(t, p, testSetup())

	res := execute(t, p, m.Campaign.ID, "/inventory")
	if res.WorldTime != m.Campaign.WorldTimeMinutes {
		t.Fatalf("world time moved: %d -> %d", m.Campaign.WorldTimeMinutes, res.WorldTime)
	}
	if res.World.Ran {
		t.Fatalf("meta turn ran the simulator: %+v", res.World)
	}
	if res.Narration == "" {
		t.Fatal("meta turn returned empty narration")
	}
	if n := len(eventsOfType(t, db, m.Campaign.ID, event.TypeRelationshipUpdate)); n != 0 {
		t.Fatalf("relationship updates = %d", n)
	}
	if n := len(eventsOfType(t, db, m.Campaign.ID, event.TypeNarration)); n != 0 {
		t.Fatalf("narration events = %d, want none for an out-of-character turn", n)
	}
}

type failingProjector struct{ projection.Projector }

func (f failingProjector) Apply(ctx context.Context, exec projection.Execer, evt event.Event) error {
	if evt.TurnNumber > 0 {
		return errors.New("disk on fire")
	}
	return f.Projector.Apply(ctx, exec, evt)
}

func TestCommitFailureLeavesNothing(t *testing.T) {
	p, db := newTestPipeline(t, Deps{Projector: failingProjector{}}, Options{})
	id := create(t, p, testSetup()).Campaign.ID
	ctx := context.Background()

	before, err := db.Campaign(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	count, err := db.CountEvents(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Execute(ctx, id, "travel to the lantern market")
	var ce *CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CommitError", err)
	}
	if ce.Step != StepProject || ce.Turn != 1 {
		t.Fatalf("commit error = %+v", ce)
	}

	after, err := db.Campaign(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if after.Version != before.Version || after.WorldTimeMinutes != before.WorldTimeMinutes || after.WorldState != before.WorldState {
		t.Fatalf("campaign changed: %+v -> %+v", before, after)
	}
	if n, _ := db.CountEvents(ctx, id); n != count {
		t.Fatalf("events = %d, want %d", n, count)
	}
}

func TestRebuildMatchesLiveState(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	id := create(t, p, testSetup()).Campaign.ID
	ctx := context.Background()

	for _, in := range []string{
		`say "I'll help you, friend"`,
		"search the bar",
		"travel to the lantern market",
		"rest until dawn",
		"/recap",
	} {
		execute(t, p, id, in)
	}
	before, err := db.LoadReadModel(ctx, id, 0)
	if err != nil {
		t.Fatal(err)
	}

	rep, err := p.Rebuild(ctx, id)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rep.Drifted() {
		t.Fatalf("drift after rebuild: %+v", rep)
	}
	if rep.LastTurn != 5 || rep.Replayed == 0 {
		t.Fatalf("report = %+v", rep)
	}

	after, err := db.LoadReadModel(ctx, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if after.Campaign.WorldState != before.Campaign.WorldState {
		t.Fatal("world state changed on rebuild")
	}
	if after.Doc.LastLocationID != "market" {
		t.Fatalf("location = %q", after.Doc.LastLocationID)
	}
	if len(after.Characters) != len(before.Characters) {
		t.Fatalf("characters %d -> %d", len(before.Characters), len(after.Characters))
	}
}

func TestArchiveStopsTurns(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	id := create(t, p, testSetup()).Campaign.ID
	ctx := context.Background()
	execute(t, p, id, `say "One last toast."`)

	rec, err := p.Archive(ctx, id, "The party parted ways.")
	if err != nil {
		t.Fatal(err)
	}
	if rec.FinalTurn != 1 {
		t.Fatalf("final turn = %d", rec.FinalTurn)
	}
	if _, err := p.Execute(ctx, id, "look around"); !errors.Is(err, ErrCampaignArchived) {
		t.Fatalf("err = %v, want ErrCampaignArchived", err)
	}
	if _, err := p.Archive(ctx, id, "again"); !errors.Is(err, ErrCampaignArchived) {
		t.Fatalf("second archive err = %v", err)
	}
	got, err := db.Legacy(ctx, id)
	if err != nil || got.Summary != "The party parted ways." {
		t.Fatalf("legacy = %+v, %v", got, err)
	}
}

type recordingObserver struct {
	got []Summary
	err error
}

func (o *recordingObserver) TurnCommitted(_ context.Context, s Summary) error {
	o.got = append(o.got, s)
	return o.err
}

func TestObserversSeeCommittedTurns(t *testing.T) {
	ok := &recordingObserver{}
	bad := &recordingObserver{err: errors.New("broker down")}
	p, db := newTestPipeline(t, Deps{Observers: []Observer{ok, bad}}, Options{})
	id := create(t, p, testSetup()).Campaign.ID

	res := execute(t, p, id, `say "Hello."`)
	if hasWarning(res.Warnings, WarnObserverFailed) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if len(ok.got) != 1 || ok.got[0].Turn != 1 {
		t.Fatalf("observed = %+v", ok.got)
	}
	for _, e := range ok.got[0].Events {
		if e.Hidden {
			t.Fatalf("hidden event leaked to observer: %+v", e)
		}
	}
	c, err := db.Campaign(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if c.Version != 2 {
		t.Fatalf("version = %d, observer failure must not undo commit", c.Version)
	}
}

func TestUnknownCampaign(t *testing.T) {
	p, _ := newTestPipeline(t, Deps{}, Options{})
	if _, err := p.Execute(context.Background(), "nope", "look"); !errors.Is(err, ErrUnknownCampaign) {
		t.Fatalf("err = %v, want ErrUnknownCampaign", err)
	}
}

func TestGuardStrictness(t *testing.T) {
	w, err := Guard{}.Violation(WarnNegativeTimeCost, "cost %d", -5)
	if err != nil || w.Code != WarnNegativeTimeCost || w.Message != "cost -5" {
		t.Fatalf("lenient = %+v, %v", w, err)
	}
	_, err = Guard{Strict: true}.Violation(WarnDoubleWorldTick, "turn %d", 3)
	var ie *InvariantError
	if !errors.As(err, &ie) || ie.Code != WarnDoubleWorldTick {
		t.Fatalf("strict err = %v", err)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	m := newKeyedMutex()
	unlock := m.Lock("a")
	done := make(chan struct{})
	go func() {
		u := m.Lock("a")
		u()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second lock acquired while first held")
	case <-time.After(10 * time.Millisecond):
	}
	unlock()
	<-done
	if n := len(m.locks); n != 0 {
		t.Fatalf("entries = %d after release", n)
	}
}

type sloppySuggester struct{}

func (sloppySuggester) Suggest(context.Context, llm.SceneContext, int) ([]llm.Choice, error) {
	return []llm.Choice{
		{Text: "Burn the granary", Tone: "EVIL", Risk: "EXTREME"},
		{Text: "Ask Bram about the road", Tone: action.ToneInvestigate, Risk: action.RiskLow},
	}, nil
}

func TestMalformedSuggestionsWarn(t *testing.T) {
	p, _ := newTestPipeline(t, Deps{Suggester: sloppySuggester{}}, Options{ChoiceCount: 3})
	id := create(t, p, testSetup()).Campaign.ID

	res := execute(t, p, id, "search the bar")
	if len(res.Choices) != 3 {
		t.Fatalf("choices = %d, want 3", len(res.Choices))
	}
	if res.Choices[0].Text != "Ask Bram about the road" {
		t.Fatalf("first choice = %q, want the usable suggestion", res.Choices[0].Text)
	}
	if hasWarning(res.Warnings, WarnSuggestionFallback) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

// flakyReloadStore serves the first read model and fails every later one.
type flakyReloadStore struct {
	*persistence.DB
	loads int
}

func (s *flakyReloadStore) LoadReadModel(ctx context.Context, id string, recent int) (persistence.ReadModel, error) {
	s.loads++
	if s.loads > 1 {
		return persistence.ReadModel{}, errors.New("database is locked")
	}
	return s.DB.LoadReadModel(ctx, id, recent)
}

func TestStaleReadModelIsReported(t *testing.T) {
	setup, db := newTestPipeline(t, Deps{}, Options{})
	id := create(t, setup, testSetup()).Campaign.ID

	p := New(Deps{Store: &flakyReloadStore{DB: db}, Logger: quietLogger()}, Options{})
	res := execute(t, p, id, `say "Quiet night."`)
	if hasWarning(res.Warnings, WarnReadModelStale) != 1 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	c, err := db.Campaign(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if c.Version != 2 || res.Version != c.Version {
		t.Fatalf("version: result %d, stored %d", res.Version, c.Version)
	}
}

func TestResultComesFromCommittedState(t *testing.T) {
	p, db := newTestPipeline(t, Deps{}, Options{})
	id := create(t, p, testSetup()).Campaign.ID

	res := execute(t, p, id, "travel to the lantern market")
	c, err := db.Campaign(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if res.ReadModel.Campaign.Version != c.Version || res.Version != c.Version {
		t.Fatalf("result version %d, read model %d, stored %d", res.Version, res.ReadModel.Campaign.Version, c.Version)
	}
	if res.WorldTime != c.WorldTimeMinutes || res.Location.ID != "market" {
		t.Fatalf("result time %d at %q, stored %d", res.WorldTime, res.Location.ID, c.WorldTimeMinutes)
	}
	if hasWarning(res.Warnings, WarnReadModelStale) != 0 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
}

type countingProjector struct {
	projection.Projector
	calls *int
}

func (c countingProjector) Apply(ctx context.Context, exec projection.Execer, evt event.Event) error {
	*c.calls++
	return c.Projector.Apply(ctx, exec, evt)
}

func TestRebuildKeepsUnknownKeys(t *testing.T) {
	var calls int
	p, db := newTestPipeline(t, Deps{Projector: countingProjector{calls: &calls}}, Options{})
	id := create(t, p, testSetup()).Campaign.ID
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *persistence.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE campaigns SET world_state = json_set(world_state, '$.future_key', json('{"tier":2}')) WHERE id = ?`, id)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	execute(t, p, id, `say "Evening."`)

	committed := calls
	rep, err := p.Rebuild(ctx, id)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if rep.Drifted() {
		t.Fatalf("drift after rebuild: %+v", rep)
	}
	if calls-committed != rep.Replayed {
		t.Fatalf("rebuild projected %d events through the pipeline projector, want %d", calls-committed, rep.Replayed)
	}

	c, err := db.Campaign(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := c.Document()
	if err != nil {
		t.Fatal(err)
	}
	raw, ok := doc.Extra("future_key")
	if !ok || string(raw) != `{"tier":2}` {
		t.Fatalf("future_key = %s, %v", raw, ok)
	}
}

func TestSetupNPCKeepsRole(t *testing.T) {
	p, _ := newTestPipeline(t, Deps{}, Options{})
	m := create(t, p, testSetup())

	if got := m.Doc.KnownNPCs["bram"]; got.Role != "innkeeper" {
		t.Fatalf("known npc = %+v", got)
	}
	res := execute(t, p, m.Campaign.ID, `say "Evening, Bram."`)
	var found bool
	for _, e := range res.Present {
		if e.ID == "bram" {
			found = e.Role == "innkeeper"
		}
	}
	if !found {
		t.Fatalf("present = %+v", res.Present)
	}
}
