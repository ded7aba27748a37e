package market

import (
	"errors"
	"testing"
	"time"

	"github.com/openpredict/marketd/internal/domain"
)

func TestRegisterCondition(t *testing.T) {
	m := newTestMarket()

	c, err := m.RegisterCondition("candidate wins the election", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.State != domain.ConditionPending {
		t.Errorf("new condition state = %q, want pending", c.State)
	}

	got, ok := m.GetCondition(c.ID)
	if !ok || got.Description != "candidate wins the election" {
		t.Errorf("lookup returned %+v", got)
	}
}

func TestDuplicateOpenConditionRejected(t *testing.T) {
	m := newTestMarket()

	m.RegisterCondition("co2 passes 500ppm", nil)
	if _, err := m.RegisterCondition("co2 passes 500ppm", nil); !errors.Is(err, domain.ErrDuplicateCondition) {
		t.Fatalf("expected ErrDuplicateCondition, got %v", err)
	}
}

func TestDescriptionReusableAfterResolution(t *testing.T) {
	m := newTestMarket()

	c, _ := m.RegisterCondition("rematch happens", nil)
	if _, err := m.ResolveCondition(c.ID, false); err != nil {
		t.Fatal(err)
	}

	// Only open conditions block re-registration.
	if _, err := m.RegisterCondition("rematch happens", nil); err != nil {
		t.Fatalf("re-register after resolution: %v", err)
	}
}

func TestResolveUnknownCondition(t *testing.T) {
	m := newTestMarket()
	if _, err := m.ResolveCondition("missing", true); !errors.Is(err, domain.ErrUnknownCondition) {
		t.Fatalf("expected ErrUnknownCondition, got %v", err)
	}
}

func TestResolveIsTerminal(t *testing.T) {
	m := newTestMarket()
	c, _ := m.RegisterCondition("terminal", nil)

	if _, err := m.ResolveCondition(c.ID, true); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ResolveCondition(c.ID, false); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	got, _ := m.GetCondition(c.ID)
	if got.State != domain.ConditionTrue {
		t.Errorf("second resolve changed state to %q", got.State)
	}
}

func TestCheckExpiry(t *testing.T) {
	m := newTestMarket()
	now := testClock()()

	soon := now.Add(time.Hour)
	later := now.Add(48 * time.Hour)
	expiring, _ := m.RegisterCondition("expires soon", &soon)
	durable, _ := m.RegisterCondition("expires later", &later)
	open, _ := m.RegisterCondition("no expiry", nil)

	expired := m.CheckExpiry(now.Add(2 * time.Hour))
	if len(expired) != 1 || expired[0] != expiring.ID {
		t.Fatalf("expired = %v, want [%s]", expired, expiring.ID)
	}

	if c, _ := m.GetCondition(expiring.ID); c.State != domain.ConditionExpired {
		t.Errorf("expiring condition state = %q, want expired", c.State)
	}
	if c, _ := m.GetCondition(durable.ID); c.State != domain.ConditionPending {
		t.Errorf("durable condition state = %q, want pending", c.State)
	}
	if c, _ := m.GetCondition(open.ID); c.State != domain.ConditionPending {
		t.Errorf("open condition state = %q, want pending", c.State)
	}

	// A second sweep finds nothing new.
	if again := m.CheckExpiry(now.Add(3 * time.Hour)); len(again) != 0 {
		t.Errorf("second sweep expired %v", again)
	}
}

func TestPlayersRegistry(t *testing.T) {
	m := newTestMarket()
	players := m.Players()

	p, err := players.Register("MrFoo")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := players.Register("MrFoo"); !errors.Is(err, domain.ErrDuplicatePlayer) {
		t.Errorf("expected ErrDuplicatePlayer, got %v", err)
	}
	if _, err := players.Register("  "); !errors.Is(err, domain.ErrInvalidPlayerName) {
		t.Errorf("expected ErrInvalidPlayerName, got %v", err)
	}

	if err := players.SetLocked(p.ID, true); err != nil {
		t.Fatal(err)
	}

	cond := mustCondition(t, m, "locked players stay out")
	if _, err := m.PostOffer(p.ID, cond, 400, 600); !errors.Is(err, domain.ErrPlayerLocked) {
		t.Errorf("locked post: expected ErrPlayerLocked, got %v", err)
	}
	if _, err := m.IssueIOU(p.ID, "bob", 100, nil); !errors.Is(err, domain.ErrPlayerLocked) {
		t.Errorf("locked issue: expected ErrPlayerLocked, got %v", err)
	}

	// Unregistered ids remain opaque and usable.
	if _, err := m.IssueIOU("ghost", "bob", 100, nil); err != nil {
		t.Errorf("opaque id issue: %v", err)
	}
}
