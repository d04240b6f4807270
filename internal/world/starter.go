package world

// StarterMap is the stock map new campaigns start on when none is supplied.
func StarterMap() []Location {
	return []Location{
		{ID: "flagon", Name: "The Gilded Flagon", Tags: []string{TagTavern}, Neighbors: []string{"market", "docks"}},
		{ID: "market", Name: "Lantern Market", Tags: []string{TagMarket}, Armed: true, Neighbors: []string{"flagon", "temple", "gate"}},
		{ID: "temple", Name: "Temple of the Tide", Tags: []string{TagTemple}, Neighbors: []string{"market"}},
		{ID: "docks", Name: "Saltmarsh Harbor", Tags: []string{TagDocks}, Neighbors: []string{"flagon"}},
		{ID: "gate", Name: "North Gate", Tags: []string{TagGarrison, TagRoad}, Armed: true, Neighbors: []string{"market", "barrows"}},
		{ID: "barrows", Name: "The Grey Barrows", Tags: []string{TagWilderness}, Neighbors: []string{"gate"}},
	}
}
