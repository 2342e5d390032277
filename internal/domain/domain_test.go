package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// ─── Pair Ordering Tests ────────────────────────────────────────────────────

func TestOrderPair_Canonical(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	gotA, gotB := OrderPair(a, b)
	if gotA != a || gotB != b {
		t.Errorf("OrderPair(a, b) = (%s, %s), want (a, b)", gotA, gotB)
	}

	// Same result regardless of argument order
	gotA, gotB = OrderPair(b, a)
	if gotA != a || gotB != b {
		t.Errorf("OrderPair(b, a) = (%s, %s), want (a, b)", gotA, gotB)
	}
}

// ─── Relation Tests ─────────────────────────────────────────────────────────

func TestRelation_OtherGuild(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	a, b = OrderPair(a, b)
	rel := Relation{GuildA: a, GuildB: b}

	if got := rel.OtherGuild(a); got != b {
		t.Errorf("OtherGuild(a) = %s, want %s", got, b)
	}
	if got := rel.OtherGuild(b); got != a {
		t.Errorf("OtherGuild(b) = %s, want %s", got, a)
	}
	if got := rel.OtherGuild(uuid.New()); got != uuid.Nil {
		t.Errorf("OtherGuild(stranger) = %s, want Nil", got)
	}
}

// ─── War Tests ──────────────────────────────────────────────────────────────

func TestWar_Expired(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	war := War{StartedAt: start, Duration: 7 * 24 * time.Hour}

	if war.Expired(start.Add(6 * 24 * time.Hour)) {
		t.Error("war should not be expired before duration elapses")
	}
	if !war.Expired(start.Add(7 * 24 * time.Hour)) {
		t.Error("war should be expired exactly at startedAt+duration")
	}
}

func TestWar_Winner(t *testing.T) {
	declarer := uuid.New()
	defender := uuid.New()
	war := War{DeclaringGuildID: declarer, DefendingGuildID: defender}

	if got := war.Winner(); got != uuid.Nil {
		t.Errorf("undecided war Winner() = %s, want Nil", got)
	}

	war.SurrenderedBy = declarer
	if got := war.Winner(); got != defender {
		t.Errorf("Winner() = %s, want defender", got)
	}

	war.SurrenderedBy = defender
	if got := war.Winner(); got != declarer {
		t.Errorf("Winner() = %s, want declarer", got)
	}
}

// ─── Party Tests ────────────────────────────────────────────────────────────

func TestParty_Membership(t *testing.T) {
	leader := uuid.New()
	invitee := uuid.New()
	party := Party{
		LeaderID:  leader,
		MemberIDs: []uuid.UUID{leader},
		InviteIDs: []uuid.UUID{invitee},
		Status:    PartyActive,
	}

	if !party.HasMember(leader) {
		t.Error("leader should be a member")
	}
	if party.HasMember(invitee) {
		t.Error("invitee is not yet a member")
	}
	if !party.HasInvite(invitee) {
		t.Error("invitee should hold an invite")
	}
}

func TestParty_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := Party{} // no expiry
	if p.ExpiredAt(now) {
		t.Error("party without expiry must never expire")
	}

	p.ExpiresAt = now.Add(-time.Minute)
	if !p.ExpiredAt(now) {
		t.Error("party past its expiry should report expired")
	}
}

// ─── Contribution Tests ─────────────────────────────────────────────────────

func TestMemberContribution_Net(t *testing.T) {
	c := MemberContribution{TotalDeposits: 500, TotalWithdrawals: 120}
	if got := c.Net(); got != 380 {
		t.Errorf("Net() = %d, want 380", got)
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestSentinelErrors(t *testing.T) {
	errs := []struct {
		name string
		err  error
	}{
		{"ErrInvalidState", ErrInvalidState},
		{"ErrDuplicateRequest", ErrDuplicateRequest},
		{"ErrNoPendingRequest", ErrNoPendingRequest},
		{"ErrStillAllied", ErrStillAllied},
		{"ErrInvalidAmount", ErrInvalidAmount},
		{"ErrInsufficientFunds", ErrInsufficientFunds},
		{"ErrNotFound", ErrNotFound},
		{"ErrPermissionDenied", ErrPermissionDenied},
		{"ErrAlreadyInParty", ErrAlreadyInParty},
	}

	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s is nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s.Error() is empty", tt.name)
			}
		})
	}
}
