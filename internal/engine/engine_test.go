package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/app/diplomacy"
	"github.com/guildforge/guildhall/internal/app/party"
	"github.com/guildforge/guildhall/internal/app/vault"
	"github.com/guildforge/guildhall/internal/currency"
	"github.com/guildforge/guildhall/internal/domain"
	"github.com/guildforge/guildhall/internal/infra/sqlite"
)

// allowAll grants every permission.
type allowAll struct{}

func (allowAll) HasPermission(uuid.UUID, uuid.UUID, domain.PermissionKind) bool { return true }

// denyAll refuses every permission.
type denyAll struct{}

func (denyAll) HasPermission(uuid.UUID, uuid.UUID, domain.PermissionKind) bool { return false }

// recordingSink collects notifications for assertions.
type recordingSink struct {
	mu       sync.Mutex
	messages map[uuid.UUID][]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{messages: make(map[uuid.UUID][]string)}
}

func (s *recordingSink) Notify(guildID uuid.UUID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[guildID] = append(s.messages[guildID], message)
}

func (s *recordingSink) count(guildID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[guildID])
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, perms domain.PermissionAuthority) (*Engine, *recordingSink, *testClock) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	sink := newRecordingSink()
	d := diplomacy.New(diplomacy.DefaultConfig(), db, db, db, clock)
	p := party.New(party.DefaultConfig(), db, clock)
	v := vault.New(db, currency.MustDefault(), clock)
	return New(d, p, v, perms, sink, clock), sink, clock
}

func TestPermissionDenialTouchesNothing(t *testing.T) {
	eng, _, _ := newTestEngine(t, denyAll{})
	actor, a, b := uuid.New(), uuid.New(), uuid.New()

	if _, err := eng.RequestAlliance(actor, a, b); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("RequestAlliance: err = %v, want ErrPermissionDenied", err)
	}
	if typ, _ := eng.RelationType(a, b); typ != domain.RelationNeutral {
		t.Errorf("relation type after denial = %v, want NEUTRAL", typ)
	}

	if _, err := eng.Deposit(actor, a, 100, ""); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("Deposit: err = %v, want ErrPermissionDenied", err)
	}
	if balance, _ := eng.Balance(a); balance != 0 {
		t.Errorf("balance after denial = %d, want 0", balance)
	}

	if _, err := eng.CreateParty(actor, a, "", nil); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("CreateParty: err = %v, want ErrPermissionDenied", err)
	}
}

func TestAllianceFlowNotifies(t *testing.T) {
	eng, sink, _ := newTestEngine(t, allowAll{})
	actorA, actorB := uuid.New(), uuid.New()
	a, b := uuid.New(), uuid.New()

	if _, err := eng.RequestAlliance(actorA, a, b); err != nil {
		t.Fatalf("request: %v", err)
	}
	if sink.count(b) != 1 {
		t.Errorf("target notified %d times, want 1", sink.count(b))
	}

	if _, err := eng.RespondAlliance(actorB, b, a, true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if typ, _ := eng.RelationType(a, b); typ != domain.RelationAlliance {
		t.Errorf("relation type = %v, want ALLIANCE", typ)
	}
	// The requester hears about the acceptance.
	if sink.count(a) != 1 {
		t.Errorf("requester notified %d times, want 1", sink.count(a))
	}
}

func TestWarFlowThroughFacade(t *testing.T) {
	eng, sink, _ := newTestEngine(t, allowAll{})
	actor := uuid.New()
	declarer, defender := uuid.New(), uuid.New()

	war, err := eng.DeclareWar(actor, declarer, defender)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if sink.count(defender) != 1 {
		t.Errorf("defender notified %d times, want 1", sink.count(defender))
	}

	if _, err := eng.ProposePeace(actor, declarer, war.ID); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := eng.RejectPeace(actor, defender, war.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	ended, err := eng.Surrender(actor, defender, war.ID)
	if err != nil {
		t.Fatalf("surrender: %v", err)
	}
	if ended.Winner() != declarer {
		t.Errorf("winner = %v, want %v", ended.Winner(), declarer)
	}
	if typ, _ := eng.RelationType(declarer, defender); typ != domain.RelationNeutral {
		t.Errorf("relation type after surrender = %v, want NEUTRAL", typ)
	}
}

func TestVaultThroughFacade(t *testing.T) {
	eng, _, _ := newTestEngine(t, allowAll{})
	actor, g := uuid.New(), uuid.New()

	if _, err := eng.Deposit(actor, g, 100, "tribute"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := eng.Withdraw(actor, g, 150, ""); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("overdraw: err = %v, want ErrInsufficientFunds", err)
	}
	balance, err := eng.Withdraw(actor, g, 60, "")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if balance != 40 {
		t.Errorf("balance = %d, want 40", balance)
	}
	if err := eng.ForceFlush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if _, err := eng.CollectJoinFee(g, uuid.New(), 5); err != nil {
		t.Fatalf("join fee: %v", err)
	}
	if balance, _ := eng.Balance(g); balance != 45 {
		t.Errorf("balance after fee = %d, want 45", balance)
	}
}

func TestPartyThroughFacade(t *testing.T) {
	eng, sink, _ := newTestEngine(t, allowAll{})
	actor := uuid.New()
	leader, invited := uuid.New(), uuid.New()

	created, err := eng.CreateParty(actor, leader, "pact", []uuid.UUID{invited})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sink.count(invited) != 1 {
		t.Errorf("invitee notified %d times, want 1", sink.count(invited))
	}

	if _, err := eng.AcceptInvite(actor, invited, created.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := eng.LeaveParty(actor, invited, created.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := eng.DissolveParty(actor, leader, created.ID); err != nil {
		t.Fatalf("dissolve: %v", err)
	}
	got, err := eng.GetParty(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.PartyDissolved {
		t.Errorf("status = %v, want DISSOLVED", got.Status)
	}
}

func TestSweepWars(t *testing.T) {
	eng, _, clock := newTestEngine(t, allowAll{})
	actor := uuid.New()

	if _, err := eng.DeclareWar(actor, uuid.New(), uuid.New()); err != nil {
		t.Fatalf("declare: %v", err)
	}
	clock.Advance(diplomacy.DefaultConfig().WarDuration)

	n, err := eng.SweepWars(clock.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("sweep ended %d wars, want 1", n)
	}
	n, err = eng.SweepWars(clock.Now())
	if err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("repeat sweep ended %d wars, want 0", n)
	}
}

func TestOnGuildDeletedCascades(t *testing.T) {
	eng, _, _ := newTestEngine(t, allowAll{})
	actor := uuid.New()
	g, ally, enemy := uuid.New(), uuid.New(), uuid.New()

	if _, err := eng.RequestAlliance(actor, g, ally); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := eng.DeclareWar(actor, g, enemy); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if _, err := eng.Deposit(actor, g, 500, ""); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	partyRec, err := eng.CreateParty(actor, g, "", nil)
	if err != nil {
		t.Fatalf("create party: %v", err)
	}

	if err := eng.OnGuildDeleted(g); err != nil {
		t.Fatalf("cascade: %v", err)
	}

	if rels, _ := eng.RelationsFor(g); len(rels) != 0 {
		t.Errorf("relations survived: %+v", rels)
	}
	if wars, _ := eng.ActiveWars(g); len(wars) != 0 {
		t.Errorf("wars survived: %+v", wars)
	}
	if history, _ := eng.TransactionHistory(g, 0); len(history) != 0 {
		t.Errorf("vault log survived: %+v", history)
	}
	if balance, _ := eng.Balance(g); balance != 0 {
		t.Errorf("balance survived: %d", balance)
	}
	got, err := eng.GetParty(partyRec.ID)
	if err != nil {
		t.Fatalf("get led party: %v", err)
	}
	if got.Status != domain.PartyDissolved {
		t.Errorf("led party status = %v, want DISSOLVED", got.Status)
	}
}

func TestOppositePairLockingDoesNotDeadlock(t *testing.T) {
	eng, _, _ := newTestEngine(t, allowAll{})
	actor := uuid.New()
	a, b := uuid.New(), uuid.New()

	// Hammer the same pair from both directions. Lock ordering makes this
	// safe; a deadlock would hang the test until the framework timeout.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			eng.RequestAlliance(actor, a, b)
		}()
		go func() {
			defer wg.Done()
			eng.RequestAlliance(actor, b, a)
		}()
	}
	wg.Wait()

	pending, err := eng.PendingRequestsFor(a)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending records = %d, want exactly 1", len(pending))
	}
}

func TestConcurrentDepositsSerialize(t *testing.T) {
	eng, _, _ := newTestEngine(t, allowAll{})
	actor, g := uuid.New(), uuid.New()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Deposit(actor, g, 10, ""); err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, err := eng.Balance(g)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != workers*10 {
		t.Errorf("balance = %d, want %d", balance, workers*10)
	}
	if _, err := eng.ReconcileBalance(g); err != nil {
		t.Errorf("reconcile: %v", err)
	}
}

func TestConcurrentAcceptsKeepSinglePartyMembership(t *testing.T) {
	eng, _, _ := newTestEngine(t, allowAll{})
	actor := uuid.New()

	// A guild invited to two parties races an accept into each. The acting
	// guild's lock is part of both domains, so exactly one accept may win.
	for round := 0; round < 20; round++ {
		leader1, leader2, invited := uuid.New(), uuid.New(), uuid.New()
		p1, err := eng.CreateParty(actor, leader1, "first", []uuid.UUID{invited})
		if err != nil {
			t.Fatalf("create first party: %v", err)
		}
		p2, err := eng.CreateParty(actor, leader2, "second", []uuid.UUID{invited})
		if err != nil {
			t.Fatalf("create second party: %v", err)
		}

		results := make(chan error, 2)
		var wg sync.WaitGroup
		for _, partyID := range []uuid.UUID{p1.ID, p2.ID} {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := eng.AcceptInvite(actor, invited, id)
				results <- err
			}(partyID)
		}
		wg.Wait()
		close(results)

		successes := 0
		for err := range results {
			if err == nil {
				successes++
			} else if !errors.Is(err, domain.ErrAlreadyInParty) {
				t.Fatalf("unexpected accept error: %v", err)
			}
		}
		if successes != 1 {
			t.Fatalf("round %d: %d accepts succeeded, want exactly 1", round, successes)
		}

		memberOf := 0
		for _, partyID := range []uuid.UUID{p1.ID, p2.ID} {
			got, err := eng.GetParty(partyID)
			if err != nil {
				t.Fatalf("get party: %v", err)
			}
			if got.HasMember(invited) {
				memberOf++
			}
		}
		if memberOf != 1 {
			t.Fatalf("round %d: guild is a member of %d parties, want exactly 1", round, memberOf)
		}
	}
}

func TestGuildDeletionSerializesWithPartyMutations(t *testing.T) {
	eng, _, _ := newTestEngine(t, allowAll{})
	actor := uuid.New()

	// A member leaving rewrites the party's full membership set. Racing that
	// against the deletion cascade must never reinsert the purged guild.
	for round := 0; round < 20; round++ {
		leader, leaver, doomed := uuid.New(), uuid.New(), uuid.New()
		p, err := eng.CreateParty(actor, leader, "", []uuid.UUID{leaver, doomed})
		if err != nil {
			t.Fatalf("create party: %v", err)
		}
		if _, err := eng.AcceptInvite(actor, leaver, p.ID); err != nil {
			t.Fatalf("leaver accept: %v", err)
		}
		if _, err := eng.AcceptInvite(actor, doomed, p.ID); err != nil {
			t.Fatalf("doomed accept: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := eng.OnGuildDeleted(doomed); err != nil {
				t.Errorf("delete guild: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := eng.LeaveParty(actor, leaver, p.ID); err != nil {
				t.Errorf("leave party: %v", err)
			}
		}()
		wg.Wait()

		got, err := eng.GetParty(p.ID)
		if err != nil {
			t.Fatalf("get party: %v", err)
		}
		if got.HasMember(doomed) || got.HasInvite(doomed) {
			t.Fatalf("round %d: deleted guild still present in party %s", round, p.ID)
		}
		if got.HasMember(leaver) {
			t.Fatalf("round %d: leaver still a member", round)
		}

		if err := eng.DissolveParty(actor, leader, p.ID); err != nil {
			t.Fatalf("dissolve: %v", err)
		}
	}
}
