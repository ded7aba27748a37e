package domain

import "time"

// PlayerID identifies a market participant. The ledger imposes no structure
// beyond identity equality; names and lock flags live in the player registry.
type PlayerID string

// Player is a registered participant. Locked players keep their holdings but
// may not issue IOUs or post offers.
type Player struct {
	ID        PlayerID
	Name      string
	Locked    bool
	CreatedAt time.Time
}

// Balance is the informational aggregate for one player: what others owe
// them (Owed) and what they owe others (Owing), over live IOUs only.
type Balance struct {
	Owed  Dollars
	Owing Dollars
}
