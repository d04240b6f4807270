package router

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/talgya/chronicle/internal/action"
)

// Rules are the data-driven term tables the router matches against.
// Terms are single lowercase words.
type Rules struct {
	MetaPrefix string              `yaml:"meta_prefix"`
	Meta       []string            `yaml:"meta"`
	Dialogue   []string            `yaml:"dialogue"`
	Guardrail  []string            `yaml:"guardrail"`
	Kinds      map[string][]string `yaml:"kinds"`
	Tones      map[string][]string `yaml:"tones"`
	Stopwords  []string            `yaml:"stopwords"`
}

// DefaultRules returns the built-in term tables.
func DefaultRules() Rules {
	return Rules{
		MetaPrefix: "/",
		Meta:       []string{"inventory", "status", "quit", "ooc", "settings", "undo", "recap"},
		Dialogue: []string{
			"say", "says", "ask", "asks", "tell", "reply", "shout", "whisper", "greet",
			"answer", "speak", "talk", "chat", "yell", "mutter", "call",
		},
		Guardrail: []string{
			"attack", "strike", "kill", "stab", "shoot", "punch", "slash",
			"steal", "pickpocket", "rob", "grab",
			"sneak", "hide", "ambush",
		},
		Kinds: map[string][]string{
			string(action.KindAttack): {"attack", "strike", "kill", "stab", "shoot", "punch", "fight", "slash", "hit"},
			string(action.KindSteal):  {"steal", "pickpocket", "rob", "swipe", "pilfer", "loot", "grab"},
			string(action.KindSneak):  {"sneak", "hide", "ambush", "creep", "lurk"},
			string(action.KindTravel): {"go", "travel", "walk", "head", "journey", "ride", "leave", "return", "enter", "sail"},
			string(action.KindSearch): {"search", "look", "examine", "inspect", "investigate", "study", "read", "track"},
			string(action.KindSocial): {"persuade", "convince", "bribe", "charm", "intimidate", "bargain", "haggle", "negotiate", "help", "comfort", "threaten"},
			string(action.KindRest):   {"rest", "sleep", "camp", "wait", "meditate"},
		},
		Tones: map[string][]string{
			string(action.ToneParagon):     {"help", "protect", "save", "heal", "comfort", "spare", "forgive", "give", "defend", "thank", "apologize", "promise"},
			string(action.ToneRenegade):    {"threaten", "intimidate", "kill", "stab", "rob", "steal", "punch", "lie", "demand", "betray", "mock", "bribe"},
			string(action.ToneInvestigate): {"ask", "search", "examine", "inspect", "investigate", "study", "question", "look", "why", "who", "where"},
		},
		Stopwords: []string{"i", "the", "a", "an", "to", "toward", "towards", "into", "at", "on", "in", "for", "with", "my", "back", "up", "around", "over"},
	}
}

// LoadRules reads rule tables from a YAML file. Sections the file omits
// keep their built-in values.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read router rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rule tables over the defaults.
func ParseRules(data []byte) (Rules, error) {
	var in Rules
	if err := yaml.Unmarshal(data, &in); err != nil {
		return Rules{}, fmt.Errorf("parse router rules: %w", err)
	}
	r := DefaultRules()
	if in.MetaPrefix != "" {
		r.MetaPrefix = in.MetaPrefix
	}
	if len(in.Meta) > 0 {
		r.Meta = in.Meta
	}
	if len(in.Dialogue) > 0 {
		r.Dialogue = in.Dialogue
	}
	if len(in.Guardrail) > 0 {
		r.Guardrail = in.Guardrail
	}
	for k, terms := range in.Kinds {
		r.Kinds[k] = terms
	}
	for k, terms := range in.Tones {
		if !action.Tone(k).Valid() {
			return Rules{}, fmt.Errorf("parse router rules: unknown tone %q", k)
		}
		r.Tones[k] = terms
	}
	if len(in.Stopwords) > 0 {
		r.Stopwords = in.Stopwords
	}
	return r, nil
}
