package market

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openpredict/marketd/internal/domain"
)

// Players is the participant registry. The ledger and books treat players
// as opaque ids; this registry adds display names and the lock flag that
// bars a player from issuing debt or posting offers.
type Players struct {
	mu     sync.RWMutex
	byID   map[domain.PlayerID]*domain.Player
	byName map[string]domain.PlayerID
	clock  func() time.Time
}

// NewPlayers creates an empty player registry.
func NewPlayers(clock func() time.Time) *Players {
	if clock == nil {
		clock = time.Now
	}
	return &Players{
		byID:   make(map[domain.PlayerID]*domain.Player),
		byName: make(map[string]domain.PlayerID),
		clock:  clock,
	}
}

// Register creates a player with a unique display name.
func (p *Players) Register(name string) (domain.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Player{}, domain.ErrInvalidPlayerName
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, taken := p.byName[name]; taken {
		return domain.Player{}, domain.ErrDuplicatePlayer
	}

	player := &domain.Player{
		ID:        domain.PlayerID(strings.ReplaceAll(uuid.NewString(), "-", "")),
		Name:      name,
		CreatedAt: p.clock(),
	}
	p.byID[player.ID] = player
	p.byName[name] = player.ID
	return *player, nil
}

// Get returns a copy of the player record.
func (p *Players) Get(id domain.PlayerID) (domain.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pl, ok := p.byID[id]
	if !ok {
		return domain.Player{}, false
	}
	return *pl, true
}

// GetByName looks a player up by display name.
func (p *Players) GetByName(name string) (domain.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byName[strings.TrimSpace(name)]
	if !ok {
		return domain.Player{}, false
	}
	return *p.byID[id], true
}

// SetLocked flips the lock flag. Locked players keep their holdings but may
// not issue IOUs or post offers.
func (p *Players) SetLocked(id domain.PlayerID, locked bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	pl.Locked = locked
	return nil
}

// locked reports whether the id belongs to a locked player. Unregistered
// ids are never locked: the core accepts opaque player ids.
func (p *Players) locked(id domain.PlayerID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pl, ok := p.byID[id]
	return ok && pl.Locked
}

// List returns copies of all registered players.
func (p *Players) List() []domain.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Player, 0, len(p.byID))
	for _, pl := range p.byID {
		out = append(out, *pl)
	}
	return out
}
