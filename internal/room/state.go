package room

// State is one of the Room's phases (spec.md §3, §4.3).
type State string

const (
	StateWaitingPlayers State = "WAITING_PLAYERS"
	StateQuestionIntro  State = "QUESTION_INTRO"
	StateAnsweringPhase State = "ANSWERING_PHASE"
	StateShowResults    State = "SHOW_RESULTS"
	StateLeaderboard    State = "LEADERBOARD"
	StatePodium         State = "PODIUM"
	StatePaused         State = "PAUSED"
)

// transitions enumerates the legal (from, to) pairs of spec.md §4.3's
// state table. Any pair not present is IllegalTransition.
var transitions = map[State]map[State]bool{
	StateWaitingPlayers: {StateQuestionIntro: true},
	StateQuestionIntro:  {StateAnsweringPhase: true},
	StateAnsweringPhase: {StateShowResults: true},
	StateShowResults:    {StateLeaderboard: true, StatePaused: true},
	StateLeaderboard:    {StateQuestionIntro: true, StatePodium: true, StatePaused: true},
	// StatePaused resolves to whatever prePausedState was; checked
	// specially in Resume rather than via this table.
}

func isLegalTransition(from, to State) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// pauseLegalStates are the only states pause() may be called from
// (spec.md §4.3: "Pause is deliberately disallowed during
// ANSWERING_PHASE to avoid timer-freeze ambiguity").
var pauseLegalStates = map[State]bool{
	StateShowResults: true,
	StateLeaderboard: true,
}
