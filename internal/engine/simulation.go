package engine

import (
	"errors"

	"github.com/ojrac/opensimplex-go"

	"github.com/talgya/chronicle/internal/entropy"
	"github.com/talgya/chronicle/internal/event"
	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/worldstate"
)

// ErrAlreadySimulated means the simulator was asked to run twice for one turn.
var ErrAlreadySimulated = errors.New("world already simulated this turn")

// Simulation triggers.
const (
	TriggerSetup  = "setup"
	TriggerTick   = "tick"
	TriggerTravel = "travel"
)

// Simulator advances off-screen factions when the clock crosses a tick
// boundary or the party travels.
type Simulator struct {
	TickLength   int64
	NewsFeedSize int
	RumorChance  float64
}

// NewSimulator returns a simulator. Non-positive values take defaults.
func NewSimulator(tickLength int64, newsFeedSize int) *Simulator {
	if tickLength <= 0 {
		tickLength = DefaultTickLength
	}
	if newsFeedSize <= 0 {
		newsFeedSize = worldstate.DefaultNewsFeedSize
	}
	return &Simulator{TickLength: tickLength, NewsFeedSize: newsFeedSize, RumorChance: 0.25}
}

// SimInput is the simulator's view of the turn.
type SimInput struct {
	CampaignID  string
	Turn        int64
	Seed        int64
	TimeBefore  int64
	TimeAfter   int64
	Traveled    bool
	LocationID  string
	Factions    []social.Faction
	NewsFeed    []worldstate.NewsItem
	SimLastTurn int64
}

// SimResult is the simulator's proposal for the turn.
type SimResult struct {
	Ran          bool                  `json:"ran"`
	Trigger      string                `json:"trigger,omitempty"`
	TicksCrossed int64                 `json:"ticks_crossed"`
	Factions     []social.Faction      `json:"factions"`
	Rumors       []event.Rumor         `json:"rumors,omitempty"`
	NewsFeed     []worldstate.NewsItem `json:"news_feed"`
	Drafts       []event.Draft         `json:"-"`
}

// Run advances the world at most once. When neither a tick boundary nor
// travel occurred it returns the inputs unchanged with Ran false.
func (s *Simulator) Run(in SimInput) (SimResult, error) {
	res := SimResult{
		Factions:     social.CloneFactions(in.Factions),
		NewsFeed:     append([]worldstate.NewsItem(nil), in.NewsFeed...),
		TicksCrossed: TicksCrossed(in.TimeBefore, in.TimeAfter, s.TickLength),
	}
	ticked := ShouldTick(in.TimeBefore, in.TimeAfter, s.TickLength)
	if !ticked && !in.Traveled {
		return res, nil
	}
	if in.Turn > 0 && in.SimLastTurn == in.Turn {
		return res, ErrAlreadySimulated
	}

	res.Ran = true
	res.Trigger = TriggerTick
	if !ticked {
		res.Trigger = TriggerTravel
	}

	noise := opensimplex.New(entropy.Seed(in.CampaignID, 0, "world-noise"))
	rng := entropy.FromSeed(in.Seed)
	tick := TickIndex(in.TimeAfter, s.TickLength)

	for i := range res.Factions {
		f := &res.Factions[i]
		completed := advanceFaction(f, i, noise, tick, rng)
		switch {
		case completed != "":
			res.Rumors = append(res.Rumors, s.rumor(in, *f, completedRumor(*f, completed)))
		case rng.Float64() < s.RumorChance:
			res.Rumors = append(res.Rumors, s.rumor(in, *f, progressRumor(*f, rng)))
		}
	}

	res.Drafts = append(res.Drafts, event.Hidden(event.FactionTick{
		Factions:     social.CloneFactions(res.Factions),
		Trigger:      res.Trigger,
		TicksCrossed: res.TicksCrossed,
		WorldTime:    in.TimeAfter,
	}))
	for _, r := range res.Rumors {
		res.Drafts = append(res.Drafts, event.PublicRumor(r))
		res.NewsFeed = append(res.NewsFeed, worldstate.NewsItem{
			Turn:      in.Turn,
			WorldTime: r.WorldTime,
			Text:      r.Text,
			FactionID: r.FactionID,
		})
	}
	if len(res.NewsFeed) > s.NewsFeedSize {
		res.NewsFeed = res.NewsFeed[len(res.NewsFeed)-s.NewsFeedSize:]
	}
	return res, nil
}

// SeedDraft returns the setup-time faction snapshot draft.
func SeedDraft(factions []social.Faction, worldTime int64) event.Draft {
	return event.Hidden(event.FactionTick{
		Factions:  social.CloneFactions(factions),
		Trigger:   TriggerSetup,
		WorldTime: worldTime,
	})
}

func (s *Simulator) rumor(in SimInput, f social.Faction, text string) event.Rumor {
	loc := f.HomeLocation
	if loc == "" {
		loc = in.LocationID
	}
	return event.Rumor{Text: text, FactionID: f.ID, LocationID: loc, WorldTime: in.TimeAfter}
}
