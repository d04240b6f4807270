package action

// timeCosts is the minute cost of each kind of action.
var timeCosts = map[Kind]int{
	KindAttack:   10,
	KindSteal:    15,
	KindSneak:    20,
	KindTravel:   120,
	KindSearch:   30,
	KindSocial:   15,
	KindRest:     240,
	KindGeneric:  15,
	KindDialogue: 15,
	KindMeta:     0,
}

// TimeCost returns how many world minutes an action of kind k consumes.
// Unknown kinds cost the same as a generic action.
func TimeCost(k Kind) int {
	if c, ok := timeCosts[k]; ok {
		return c
	}
	return timeCosts[KindGeneric]
}
