package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talgya/chronicle/internal/action"
	"github.com/talgya/chronicle/internal/world"
	"github.com/talgya/chronicle/internal/worldstate"
)

func fakeCompletions(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testScene() SceneContext {
	return SceneContext{
		Title:    "The Salt Road",
		Clock:    world.Clock(495),
		Period:   world.PeriodOf(495),
		Location: world.Location{ID: "tavern", Name: "The Gilded Flagon", Neighbors: []string{"market"}},
		Input:    "search the cellar",
		Intent:   action.Intent{Category: action.CategoryAction, Kind: action.KindSearch},
		Outcome:  &action.Outcome{Kind: action.KindSearch, Success: true, Risk: action.RiskLow, Summary: "You find a loose stone behind the casks"},
		Present:  []string{"Maren"},
	}
}

func TestNilClientDisabled(t *testing.T) {
	c := NewClient(Config{})
	if c.Enabled() {
		t.Fatal("client without key is enabled")
	}
	if _, err := c.Complete(context.Background(), "s", "u", 10); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
	if _, err := NewStoryteller(c, 0).Narrate(context.Background(), testScene()); !errors.Is(err, ErrDisabled) {
		t.Errorf("narrate err = %v", err)
	}
}

func TestNarrateBoundsReply(t *testing.T) {
	long := strings.Repeat("The lamps gutter. ", 9)
	srv := fakeCompletions(t, long)
	st := NewStoryteller(NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}), 0)

	got, err := st.Narrate(context.Background(), testScene())
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(got, "."); n != MaxSentences {
		t.Errorf("sentences = %d, want %d: %q", n, MaxSentences, got)
	}
}

func TestSuggestParsesChoices(t *testing.T) {
	reply := "Here you go:\n" + `[{"text":"Question Maren","tone":"investigate","risk":"low"},{"text":"Pry the stone loose","tone":"RENEGADE","risk":"MODERATE"}]`
	srv := fakeCompletions(t, reply)
	st := NewStoryteller(NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}), 0)

	got, err := st.Suggest(context.Background(), testScene(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Tone != action.ToneInvestigate || got[0].Risk != action.RiskLow {
		t.Fatalf("choices = %+v", got)
	}
}

func TestSuggestRejectsProse(t *testing.T) {
	srv := fakeCompletions(t, "You could go anywhere.")
	st := NewStoryteller(NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1"}), 0)
	if _, err := st.Suggest(context.Background(), testScene(), 3); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNormalizeChoicesExactlyN(t *testing.T) {
	scene := testScene()
	in := []Choice{
		{Text: "Question Maren", Tone: action.ToneInvestigate, Risk: action.RiskLow},
		{Text: "question maren", Tone: action.ToneInvestigate, Risk: action.RiskLow},
		{Text: "Dance", Tone: "SILLY", Risk: action.RiskLow},
		{Text: "", Tone: action.ToneNeutral, Risk: action.RiskLow},
	}
	for _, n := range []int{1, 3, 5, 12} {
		got := NormalizeChoices(in, n, scene)
		if len(got) != n {
			t.Fatalf("n=%d: got %d choices", n, len(got))
		}
		if got[0].Text != "Question Maren" {
			t.Errorf("n=%d: first = %q", n, got[0].Text)
		}
		seen := map[string]bool{}
		for _, c := range got {
			if !c.Tone.Valid() || !c.Risk.Valid() {
				t.Errorf("invalid choice %+v", c)
			}
			if seen[strings.ToLower(c.Text)] {
				t.Errorf("duplicate choice %q", c.Text)
			}
			seen[strings.ToLower(c.Text)] = true
		}
	}
	if got := NormalizeChoices(nil, 3, scene); len(got) != 3 {
		t.Errorf("defaults only: %d", len(got))
	}
}

func TestUsableChoices(t *testing.T) {
	in := []Choice{
		{Text: "Question Maren", Tone: action.ToneInvestigate, Risk: action.RiskLow},
		{Text: "question maren", Tone: action.ToneInvestigate, Risk: action.RiskLow},
		{Text: "Dance", Tone: "SILLY", Risk: action.RiskLow},
		{Text: "Rob the till", Tone: action.ToneRenegade, Risk: "EXTREME"},
		{Text: "Leave quietly", Tone: action.ToneNeutral, Risk: action.RiskLow},
	}
	tests := []struct {
		n    int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
	}
	for _, tt := range tests {
		if got := UsableChoices(in, tt.n); got != tt.want {
			t.Errorf("n=%d: usable = %d, want %d", tt.n, got, tt.want)
		}
	}
	if got := UsableChoices(nil, 3); got != 0 {
		t.Errorf("nil: usable = %d", got)
	}
}

func TestMetaNarration(t *testing.T) {
	s := testScene()
	got := MetaNarration(s)
	if got == "" || got != MetaNarration(s) {
		t.Fatalf("meta narration = %q", got)
	}
	if !strings.Contains(got, s.Location.Name) {
		t.Errorf("meta narration misses location: %q", got)
	}
	if MetaNarration(SceneContext{}) == "" {
		t.Error("empty scene gave empty narration")
	}
}

func TestBoundNarration(t *testing.T) {
	tests := []struct {
		in        string
		maxWords  int
		sentences int
	}{
		{"One. Two! Three? Four. Five. Six. Seven.", MaxWords, 5},
		{`He says "stop." You wait.`, MaxWords, 2},
		{strings.Repeat("word ", 300), MaxWords, 1},
	}
	for _, tt := range tests {
		got := BoundNarration(tt.in)
		if n := len(strings.Fields(got)); n > tt.maxWords {
			t.Errorf("%q: %d words", got, n)
		}
		if n := len(splitSentences(got)); n != tt.sentences {
			t.Errorf("%q: %d sentences, want %d", got, n, tt.sentences)
		}
	}
	if BoundNarration("   ") != "" {
		t.Error("blank input not empty")
	}
}

func TestFallbackNarrationDeterministic(t *testing.T) {
	s := testScene()
	a, b := FallbackNarration(s), FallbackNarration(s)
	if a != b || a == "" {
		t.Fatalf("fallback = %q / %q", a, b)
	}
	if !strings.Contains(a, "loose stone") || !strings.Contains(a, "Maren") {
		t.Errorf("fallback misses scene: %q", a)
	}
}

func TestCheckNarration(t *testing.T) {
	fail := &action.Outcome{Success: false}
	ledger := worldstate.Ledger{Constraints: []string{"No magic exists in this world"}}

	issues := CheckNarration("You succeed with ease as magic flares.", fail, ledger)
	if len(issues) != 2 {
		t.Fatalf("issues = %+v", issues)
	}
	if issues[0].Code != IssueContradictsOutcome || issues[1].Code != IssueConstraint {
		t.Errorf("codes = %s, %s", issues[0].Code, issues[1].Code)
	}
	if got := CheckNarration("You stumble on the stair.", fail, ledger); len(got) != 0 {
		t.Errorf("consistent narration flagged: %+v", got)
	}
}

func TestGazetteFallback(t *testing.T) {
	g := GenerateGazette(context.Background(), nil, GazetteData{
		Title: "The Salt Road",
		Clock: "Day 1, 08:00",
		News:  []worldstate.NewsItem{{Text: "The Crown raises a levy."}},
	})
	if !g.Fallback || !strings.Contains(g.Content, "levy") {
		t.Errorf("gazette = %+v", g)
	}
}
