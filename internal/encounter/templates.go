package encounter

// Template is a curated NPC that belongs at a kind of place.
type Template struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Role    string   `yaml:"role" json:"role"`
	Summary string   `yaml:"summary" json:"summary"`
	Tags    []string `yaml:"tags" json:"tags"`
}

// DefaultTemplates are the stock curated NPCs, tried in order.
func DefaultTemplates() []Template {
	return []Template{
		{ID: "innkeeper", Name: "Maren Holloway", Role: "innkeeper", Summary: "keeps the ledger and the gossip", Tags: []string{"tavern"}},
		{ID: "minstrel", Name: "Tobin Reed", Role: "minstrel", Summary: "sings whatever pays", Tags: []string{"tavern"}},
		{ID: "spice-merchant", Name: "Ysolde Varr", Role: "spice merchant", Summary: "sells pepper and secrets by weight", Tags: []string{"market"}},
		{ID: "priestess", Name: "Mother Aude", Role: "priestess", Summary: "tends the shrine and the sick", Tags: []string{"temple"}},
		{ID: "toll-warden", Name: "Garrick Fenn", Role: "toll warden", Summary: "collects the road toll with a heavy hand", Tags: []string{"road"}},
		{ID: "harbor-master", Name: "Ilsa Brand", Role: "harbor master", Summary: "knows every hull in port", Tags: []string{"docks"}},
		{ID: "watch-captain", Name: "Captain Orrin Vale", Role: "watch captain", Summary: "answers to the Crown and to coin", Tags: []string{"garrison"}},
	}
}

func (t Template) fits(tags []string) bool {
	for _, want := range t.Tags {
		for _, have := range tags {
			if want == have {
				return true
			}
		}
	}
	return false
}
