// Package turn runs a player's input through the turn stages and commits
// the result as one atomic batch of events.
//
// Stages run in a fixed order over an in-memory Packet: intent routing,
// mechanics, presence, world simulation, relationships, arc tracking and
// then narration. Only the commit coordinator writes to the store.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/encounter"
	"github.com/talgya/chronicle/internal/engine"
	"github.com/talgya/chronicle/internal/entropy"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/llm"
	"github.com/talgya/chronicle/internal/mechanics"
	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/projection"
	"github.com/talgya/chronicle/internal/router"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

// Options tunes the pipeline. Zero values take defaults.
type Options struct {
	TickLength        int64
	IntroWindow       int64
	ChoiceCount       int
	BanterCooldown    int
	Strict            bool
	NarrationTimeout  time.Duration
	SuggestionTimeout time.Duration
	RecentEvents      int
	Limits            worldstate.Limits
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		TickLength:        engine.DefaultTickLength,
		IntroWindow:       encounter.DefaultWindow,
		ChoiceCount:       3,
		BanterCooldown:    engine.DefaultBanterCooldown,
		NarrationTimeout:  8 * time.Second,
		SuggestionTimeout: 5 * time.Second,
		RecentEvents:      20,
		Limits:            worldstate.DefaultLimits(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TickLength <= 0 {
		o.TickLength = d.TickLength
	}
	if o.IntroWindow <= 0 {
		o.IntroWindow = d.IntroWindow
	}
	if o.ChoiceCount <= 0 {
		o.ChoiceCount = d.ChoiceCount
	}
	if o.BanterCooldown <= 0 {
		o.BanterCooldown = d.BanterCooldown
	}
	if o.NarrationTimeout <= 0 {
		o.NarrationTimeout = d.NarrationTimeout
	}
	if o.SuggestionTimeout <= 0 {
		o.SuggestionTimeout = d.SuggestionTimeout
	}
	if o.RecentEvents <= 0 {
		o.RecentEvents = d.RecentEvents
	}
	o.Limits = o.Limits.WithDefaults()
	return o
}

// Deps are the pipeline's collaborators. Only Store is required; nil
// stages are built from Options, and a nil Narrator or Suggester means the
// deterministic fallbacks are used without a warning.
type Deps struct {
	Store     Store
	Router    *router.Router
	Mechanics *mechanics.Resolver
	Presence  *encounter.Resolver
	Simulator *engine.Simulator
	Relations *engine.RelationshipEngine
	Arc       *engine.ArcTracker
	Narrator  llm.Narrator
	Suggester llm.Suggester
	Projector EntityProjector
	Observers []Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// Pipeline executes turns.
type Pipeline struct {
	store     Store
	router    *router.Router
	mechanics *mechanics.Resolver
	presence  *encounter.Resolver
	sim       *engine.Simulator
	relations *engine.RelationshipEngine
	arc       *engine.ArcTracker
	narrator  llm.Narrator
	suggester llm.Suggester
	observers []Observer

	folder  projection.Folder
	commits *coordinator
	guard   Guard
	opts    Options
	locks   *keyedMutex
	log     *slog.Logger
}

// New wires a pipeline.
func New(deps Deps, opts Options) *Pipeline {
	opts = opts.withDefaults()
	if deps.Router == nil {
		deps.Router = router.Default()
	}
	if deps.Mechanics == nil {
		deps.Mechanics = mechanics.NewResolver()
	}
	if deps.Presence == nil {
		deps.Presence = encounter.NewResolver(opts.IntroWindow, encounter.DefaultTemplates())
	}
	if deps.Simulator == nil {
		deps.Simulator = engine.NewSimulator(opts.TickLength, opts.Limits.NewsFeed)
	}
	if deps.Relations == nil {
		deps.Relations = engine.NewRelationshipEngine(opts.BanterCooldown)
	}
	if deps.Arc == nil {
		deps.Arc = engine.NewArcTracker(nil)
	}
	if deps.Projector == nil {
		deps.Projector = projection.Projector{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	folder := projection.NewFolder(opts.Limits)
	return &Pipeline{
		store:     deps.Store,
		router:    deps.Router,
		mechanics: deps.Mechanics,
		presence:  deps.Presence,
		sim:       deps.Simulator,
		relations: deps.Relations,
		arc:       deps.Arc,
		narrator:  deps.Narrator,
		suggester: deps.Suggester,
		observers: deps.Observers,
		folder:    folder,
		commits:   &coordinator{store: deps.Store, folder: folder, projector: deps.Projector, now: deps.Now},
		guard:     Guard{Strict: opts.Strict},
		opts:      opts,
		locks:     newKeyedMutex(),
		log:       deps.Logger,
	}
}

// AddObserver registers a post-commit observer. Call it before serving.
func (p *Pipeline) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// Result is what a committed turn returns to the caller.
type Result struct {
	CampaignID    string                   `json:"campaign_id"`
	Turn          int64                    `json:"turn"`
	Version       int64                    `json:"version"`
	WorldTime     int64                    `json:"world_time"`
	Clock         string                   `json:"clock"`
	Location      world.Location           `json:"location"`
	Intent        action.Intent            `json:"intent"`
	Outcome       *action.Outcome          `json:"outcome,omitempty"`
	Present       []encounter.Entity       `json:"present"`
	Introduced    *encounter.Entity        `json:"introduced,omitempty"`
	Throttle      encounter.Throttle       `json:"throttle"`
	World         engine.SimResult         `json:"world"`
	Relationships []engine.CompanionUpdate `json:"relationships,omitempty"`
	Banter        *engine.BanterLine       `json:"banter,omitempty"`
	Tensions      []engine.Tension         `json:"tensions,omitempty"`
	Arc           engine.ArcResult         `json:"arc"`
	Narration     string                   `json:"narration"`
	Choices       []llm.Choice             `json:"choices"`
	Warnings      []Warning                `json:"warnings"`
	Events        []event.Event            `json:"events"`

	ReadModel persistence.ReadModel `json:"-"`
}

// Execute runs one turn for a campaign and commits it.
func (p *Pipeline) Execute(ctx context.Context, campaignID, input string) (*Result, error) {
	unlock := p.locks.Lock(campaignID)
	defer unlock()

	model, err := p.load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if model.Campaign.Status == persistence.StatusArchived {
		return nil, fmt.Errorf("%s: %w", campaignID, ErrCampaignArchived)
	}
	if model.Campaign.NextTurnNumber < 1 {
		return nil, fmt.Errorf("%s: %w", campaignID, ErrNotSetUp)
	}

	pk := &Packet{
		CampaignID: campaignID,
		Turn:       model.Campaign.NextTurnNumber,
		Version:    model.Campaign.Version,
		Input:      input,
		Model:      model,
		Doc:        model.Doc,
		TimeBefore: model.Campaign.WorldTimeMinutes,
		Location:   model.Doc.CurrentLocation(),
	}
	if err := p.run(ctx, pk); err != nil {
		return nil, err
	}

	committed, err := p.commits.commit(ctx, CommitRequest{
		CampaignID:      campaignID,
		Turn:            pk.Turn,
		ExpectedVersion: pk.Version,
		TimeBefore:      pk.TimeBefore,
		TimeAfter:       pk.TimeAfter,
		Base:            pk.Doc,
		Drafts:          pk.drafts(),
	})
	if err != nil {
		p.log.Error("turn commit failed", "campaign", campaignID, "turn", pk.Turn, "error", err)
		return nil, err
	}
	p.log.Info("turn committed",
		"campaign", campaignID,
		"turn", pk.Turn,
		"version", committed.Version,
		"category", pk.Intent.Category,
		"events", len(committed.Events),
		"world_time", pk.TimeAfter,
	)

	res := p.result(pk, committed)
	fresh, err := p.store.LoadReadModel(ctx, campaignID, p.opts.RecentEvents)
	if err != nil {
		p.log.Warn("reload read model", "campaign", campaignID, "error", err)
		res.Warnings = append(res.Warnings, Warning{Code: WarnReadModelStale, Message: fmt.Sprintf("reload read model: %v", err)})
	} else {
		res.ReadModel = fresh
		res.Version = fresh.Campaign.Version
		res.WorldTime = fresh.Campaign.WorldTimeMinutes
		res.Clock = world.Clock(res.WorldTime)
		res.Location = fresh.Doc.CurrentLocation()
	}
	p.notify(ctx, res)
	return res, nil
}

func (p *Pipeline) load(ctx context.Context, campaignID string) (persistence.ReadModel, error) {
	model, err := p.store.LoadReadModel(ctx, campaignID, p.opts.RecentEvents)
	if errors.Is(err, persistence.ErrCampaignNotFound) {
		return model, fmt.Errorf("%s: %w", campaignID, ErrUnknownCampaign)
	}
	if err != nil {
		return model, fmt.Errorf("load campaign: %w", err)
	}
	return model, nil
}

// run executes every stage before commit. Nothing here writes to storage.
func (p *Pipeline) run(ctx context.Context, pk *Packet) error {
	pk.Intent = p.router.Classify(pk.Input)
	if err := p.resolve(pk); err != nil {
		return err
	}
	if err := p.advanceClock(pk); err != nil {
		return err
	}

	meta := pk.Intent.Category == action.CategoryMeta
	if !meta {
		p.resolvePresence(pk)
		if err := p.simulate(pk); err != nil {
			return err
		}
		p.relate(pk)
	}

	pk.Tentative = pk.Doc.Clone()
	p.folder.FoldDrafts(pk.Tentative, pk.CampaignID, pk.Turn, pk.drafts())
	if !meta {
		pk.Arc = p.arc.Advance(pk.Doc.Arc, pk.Tentative.Ledger, pk.Turn)
		p.folder.FoldDrafts(pk.Tentative, pk.CampaignID, pk.Turn, []event.Draft{pk.Arc.Draft})
		p.narrate(ctx, pk)
	} else {
		pk.Narration = llm.MetaNarration(pk.scene())
	}
	p.suggest(ctx, pk, meta)
	return nil
}

func (p *Pipeline) resolve(pk *Packet) error {
	var out action.Outcome
	switch pk.Intent.Category {
	case action.CategoryMeta:
		out = router.MetaOutcome(pk.Intent)
	case action.CategoryDialogueOnly:
		out = router.DialogueOutcome(pk.Intent, pk.Doc.PlayerID)
	default:
		in := mechanics.Input{
			Intent:     pk.Intent,
			PlayerID:   pk.Doc.PlayerID,
			Location:   pk.Location,
			Locations:  pk.Doc.Locations,
			Companions: pk.Doc.Companions(),
			Arc:        pk.Doc.Arc.Stage,
			WorldTime:  pk.TimeBefore,
			Seed:       entropy.Seed(pk.CampaignID, pk.Turn, entropy.StreamMechanics),
		}
		if pl := pk.Model.Player; pl != nil {
			in.Stats = pl.Stats
			in.Stress = pl.Stress
		}
		for _, c := range pk.Model.NPCsAt(pk.Location.ID) {
			in.Present = append(in.Present, mechanics.Target{ID: c.ID, Name: c.Name})
		}
		var err error
		if out, err = p.mechanics.Resolve(in); err != nil {
			return fmt.Errorf("resolve action: %w", err)
		}
	}
	pk.Outcome = &out
	return nil
}

func (p *Pipeline) advanceClock(pk *Packet) error {
	cost := int64(pk.Outcome.TimeCostMinutes)
	if cost < 0 {
		w, err := p.guard.Violation(WarnNegativeTimeCost, "time cost %d for %s clamped to 0", cost, pk.Outcome.Kind)
		if err != nil {
			return err
		}
		pk.Warnings = append(pk.Warnings, w)
		cost = 0
		pk.Outcome.TimeCostMinutes = 0
	}
	pk.TimeAfter = pk.TimeBefore + cost

	if pk.Outcome.Traveled() {
		if loc, ok := pk.Doc.Location(pk.Outcome.Travel.To); ok {
			pk.Location = loc
		}
	}
	return nil
}

func (p *Pipeline) resolvePresence(pk *Packet) {
	var npcs []encounter.Entity
	for _, c := range pk.Model.Characters {
		if c.Role == event.RolePlayer {
			continue
		}
		if _, companion := pk.Doc.PartyRoster[c.ID]; companion {
			continue
		}
		known := pk.Doc.KnownNPCs[c.ID]
		npcs = append(npcs, encounter.Entity{
			ID:         c.ID,
			Name:       c.Name,
			Role:       known.Role,
			Summary:    known.Summary,
			LocationID: c.LocationID,
		})
	}
	pk.Presence = p.presence.Resolve(encounter.Input{
		CampaignID: pk.CampaignID,
		Turn:       pk.Turn,
		Seed:       entropy.Seed(pk.CampaignID, pk.Turn, entropy.StreamPresence),
		Location:   pk.Location,
		WorldTime:  pk.TimeAfter,
		NPCs:       npcs,
		Log:        pk.Doc.IntroductionLog,
		Introduced: pk.Doc.IntroducedNPCs,
	})
}

func (p *Pipeline) simulate(pk *Packet) error {
	res, err := p.sim.Run(engine.SimInput{
		CampaignID:  pk.CampaignID,
		Turn:        pk.Turn,
		Seed:        entropy.Seed(pk.CampaignID, pk.Turn, entropy.StreamWorld),
		TimeBefore:  pk.TimeBefore,
		TimeAfter:   pk.TimeAfter,
		Traveled:    pk.Outcome.Traveled(),
		LocationID:  pk.Location.ID,
		Factions:    pk.Doc.ActiveFactions,
		NewsFeed:    pk.Doc.NewsFeed,
		SimLastTurn: pk.Doc.SimLastTurn,
	})
	if errors.Is(err, engine.ErrAlreadySimulated) {
		w, gerr := p.guard.Violation(WarnDoubleWorldTick, "world already simulated on turn %d", pk.Turn)
		if gerr != nil {
			return gerr
		}
		pk.Warnings = append(pk.Warnings, w)
		err = nil
	}
	if err != nil {
		return fmt.Errorf("simulate world: %w", err)
	}
	pk.Sim = res
	return nil
}

func (p *Pipeline) relate(pk *Packet) {
	comps := pk.Doc.Companions()
	if len(comps) == 0 {
		return
	}
	pk.Relations = p.relations.Apply(engine.RelationInput{
		Seed:       entropy.Seed(pk.CampaignID, pk.Turn, entropy.StreamRelationships),
		Tone:       pk.Outcome.Tone,
		Success:    pk.Outcome.Success,
		Critical:   pk.Outcome.Critical,
		Companions: comps,
		Overrides:  pk.Outcome.AffinityOverrides,
	})
}

func (p *Pipeline) narrate(ctx context.Context, pk *Packet) {
	scene := pk.scene()
	fallback := func() {
		pk.Narration = llm.FallbackNarration(scene)
		pk.NarrationFallback = true
	}
	if p.narrator == nil {
		fallback()
		return
	}

	text, err := withTimeout(ctx, p.opts.NarrationTimeout, func(ctx context.Context) (string, error) {
		return p.narrator.Narrate(ctx, scene)
	})
	text = llm.BoundNarration(text)
	if err == nil && text == "" {
		err = errors.New("empty narration")
	}
	if err != nil {
		pk.warn(WarnNarrationFallback, "narrator: %v", err)
		fallback()
		return
	}
	pk.Narration = text
	for _, issue := range llm.CheckNarration(text, pk.Outcome, pk.Tentative.Ledger) {
		pk.warn(issue.Code, "%s", issue.Message)
	}
}

func (p *Pipeline) suggest(ctx context.Context, pk *Packet, meta bool) {
	scene := pk.scene()
	n := p.opts.ChoiceCount
	var proposed []llm.Choice
	if p.suggester != nil && !meta {
		got, err := withTimeout(ctx, p.opts.SuggestionTimeout, func(ctx context.Context) ([]llm.Choice, error) {
			return p.suggester.Suggest(ctx, scene, n)
		})
		if err != nil {
			pk.warn(WarnSuggestionFallback, "suggester: %v", err)
		} else {
			if kept := llm.UsableChoices(got, n); kept < n {
				pk.warn(WarnSuggestionFallback, "suggester: %d of %d choices usable", kept, n)
			}
			proposed = got
		}
	}
	pk.Choices = llm.NormalizeChoices(proposed, n, scene)
}

// withTimeout runs fn under a deadline and stops waiting when it passes,
// even if fn ignores its context.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type reply struct {
		v   T
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		v, err := fn(ctx)
		ch <- reply{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Pipeline) result(pk *Packet, c Committed) *Result {
	res := &Result{
		CampaignID:    pk.CampaignID,
		Turn:          pk.Turn,
		Version:       c.Version,
		WorldTime:     pk.TimeAfter,
		Clock:         world.Clock(pk.TimeAfter),
		Location:      pk.Location,
		Intent:        pk.Intent,
		Outcome:       pk.Outcome,
		Present:       pk.Presence.Present,
		Introduced:    pk.Presence.Introduced,
		Throttle:      pk.Presence.Throttle,
		World:         pk.Sim,
		Relationships: pk.Relations.Updates,
		Banter:        pk.Relations.Banter,
		Tensions:      pk.Relations.Tensions,
		Arc:           pk.Arc,
		Narration:     pk.Narration,
		Choices:       pk.Choices,
		Warnings:      pk.Warnings,
	}
	if res.Warnings == nil {
		res.Warnings = []Warning{}
	}
	for _, e := range c.Events {
		if !e.Hidden {
			res.Events = append(res.Events, e)
		}
	}
	return res
}
