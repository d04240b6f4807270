// Gazette generation: the campaign's news feed and faction standings as a
// short broadsheet.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/talgya/chronicle/internal/social"
	"github.com/talgya/chronicle/internal/worldstate"
)

// GazetteData holds the raw data needed to write a gazette.
type GazetteData struct {
	Title    string
	Clock    string
	Arc      worldstate.ArcStage
	Factions []social.Faction
	News     []worldstate.NewsItem
}

// Gazette holds a generated gazette issue.
type Gazette struct {
	GeneratedAt time.Time `json:"generated_at"`
	Clock       string    `json:"clock"`
	Content     string    `json:"content"`
	Fallback    bool      `json:"fallback,omitempty"`
}

const gazetteSystem = `You are the editor of a town broadsheet in a role-playing campaign. Rewrite the listed rumors and faction standings as a short, period-flavored news sheet, under 250 words. Report only what is listed. Do not break character.`

// GenerateGazette writes a gazette, falling back to plain text when the
// client is disabled or fails.
func GenerateGazette(ctx context.Context, client *Client, data GazetteData) *Gazette {
	g := &Gazette{GeneratedAt: time.Now(), Clock: data.Clock}
	if client.Enabled() {
		content, err := client.Complete(ctx, gazetteSystem, buildGazettePrompt(data), 500)
		if err == nil && strings.TrimSpace(content) != "" {
			g.Content = content
			return g
		}
	}
	g.Content = fallbackGazette(data)
	g.Fallback = true
	return g
}

func buildGazettePrompt(data GazetteData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the gazette for %s.\n\n", data.Title)
	fmt.Fprintf(&b, "DATE: %s\nTHE MOOD OF THE TIMES: %s\n\n", data.Clock, data.Arc)

	if len(data.News) > 0 {
		b.WriteString("RUMORS:\n")
		for _, n := range data.News {
			fmt.Fprintf(&b, "- %s\n", n.Text)
		}
		b.WriteString("\n")
	}
	if len(data.Factions) > 0 {
		b.WriteString("FACTIONS:\n")
		for _, f := range data.Factions {
			fmt.Fprintf(&b, "- %s (%s): %s, %d%% along, resources %d\n", f.Name, f.Kind, f.Goal, f.Progress, f.Resources)
		}
	}
	return b.String()
}

func fallbackGazette(data GazetteData) string {
	var b strings.Builder
	title := strings.ToUpper(data.Title)
	if title == "" {
		title = "THE GAZETTE"
	}
	fmt.Fprintf(&b, "%s\n%s\n%s\n\n", title, strings.Repeat("=", len(title)), data.Clock)

	if len(data.News) == 0 {
		b.WriteString("The streets are quiet. No news of note.\n\n")
	} else {
		b.WriteString("RUMORS ABROAD\n")
		for _, n := range data.News {
			fmt.Fprintf(&b, "- %s\n", n.Text)
		}
		b.WriteString("\n")
	}

	if len(data.Factions) > 0 {
		b.WriteString("FACTION AFFAIRS\n")
		for _, f := range data.Factions {
			stance := ""
			if f.Hostile {
				stance = ", hostile"
			}
			fmt.Fprintf(&b, "- %s%s: %s (%d%%)\n", f.Name, stance, f.Goal, f.Progress)
		}
	}
	return b.String()
}
