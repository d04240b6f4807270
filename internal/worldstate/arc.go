package worldstate

// ArcStage is the campaign's coarse narrative phase.
type ArcStage string

const (
	ArcSetup      ArcStage = "SETUP"
	ArcRising     ArcStage = "RISING"
	ArcClimax     ArcStage = "CLIMAX"
	ArcResolution ArcStage = "RESOLUTION"
)

// Next returns the stage after s. The second result is false at RESOLUTION.
func (s ArcStage) Next() (ArcStage, bool) {
	switch s {
	case ArcSetup:
		return ArcRising, true
	case ArcRising:
		return ArcClimax, true
	case ArcClimax:
		return ArcResolution, true
	}
	return s, false
}

// Rank orders stages from SETUP (0) to RESOLUTION (3).
func (s ArcStage) Rank() int {
	switch s {
	case ArcRising:
		return 1
	case ArcClimax:
		return 2
	case ArcResolution:
		return 3
	}
	return 0
}

// ArcState is the persisted arc tracker state.
type ArcState struct {
	Stage        ArcStage `json:"stage"`
	TurnsInStage int      `json:"turns_in_stage"`
	Tension      float64  `json:"tension"`
	EnteredTurn  int64    `json:"entered_turn"`
}
