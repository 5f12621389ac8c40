package entity

// CompletionRecord is emitted once per match, when its pot is settled.
// PlayerTwo is empty for a match canceled while waiting; Winner is empty unless the match was won.
type CompletionRecord struct {
	Number    uint64              `json:"number"`
	PlayerOne Identity            `json:"player_one"`
	PlayerTwo Identity            `json:"player_two,omitempty"`
	Winner    Identity            `json:"winner,omitempty"`
	Outcome   StateKind           `json:"outcome"`
	Pot       uint64              `json:"pot"`
	Fee       uint64              `json:"fee"`
	Remainder uint64              `json:"remainder,omitempty"`
	Payouts   map[Identity]uint64 `json:"payouts,omitempty"`
}
