package encounter

import "math/rand"

// Name pools for procedural generation.
var firstNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Jasper", "Kael", "Leif", "Magnus", "Oswin", "Rowan",
	"Stellan", "Theron", "Varen", "Wren", "Yorick", "Edric", "Gunnar",
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Iris", "Juno", "Kira", "Mira", "Nessa", "Olwen", "Petra",
	"Runa", "Senna", "Thea", "Vera", "Willa", "Yara", "Dagny",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Ironhand", "Dunmore",
	"Greenvale", "Stormcrow", "Frostborn", "Hearthstone", "Millward",
	"Copperfield", "Ravenmoor", "Silverdale", "Wolfsbane", "Stoneheart",
	"Deepwell", "Brightwater", "Redforge", "Windholm", "Marshwood",
	"Riverstone", "Embercroft", "Holloway", "Dawnridge", "Farrow",
}

// roleByTag is the occupation a procedurally named local gets at a place.
var roleByTag = map[string][]string{
	"tavern":     {"barkeep", "card sharp", "off-duty sailor"},
	"market":     {"fishmonger", "cloth trader", "tinker"},
	"temple":     {"acolyte", "pilgrim", "bell ringer"},
	"road":       {"drover", "peddler", "courier"},
	"wilderness": {"trapper", "hermit", "charcoal burner"},
	"garrison":   {"sergeant", "quartermaster", "recruit"},
	"docks":      {"stevedore", "net mender", "harbor clerk"},
}

var defaultRoles = []string{"local", "traveler", "laborer"}

// background figures are never named and never persisted.
var backgroundFigures = []string{
	"a passing stranger",
	"a hooded traveler",
	"a child chasing a dog",
	"an old woman with a basket",
	"a bored watchman",
}

// generateName creates a random full name.
func generateName(rng *rand.Rand) string {
	first := firstNames[rng.Intn(len(firstNames))]
	last := lastNames[rng.Intn(len(lastNames))]
	return first + " " + last
}

func roleFor(tags []string, rng *rand.Rand) string {
	for _, t := range tags {
		if roles, ok := roleByTag[t]; ok {
			return roles[rng.Intn(len(roles))]
		}
	}
	return defaultRoles[rng.Intn(len(defaultRoles))]
}
