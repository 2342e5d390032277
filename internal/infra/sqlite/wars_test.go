package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

func newTestWar(declarer, defender uuid.UUID) domain.War {
	return domain.War{
		ID:               uuid.New(),
		DeclaringGuildID: declarer,
		DefendingGuildID: defender,
		StartedAt:        testTime(),
		Duration:         7 * 24 * time.Hour,
	}
}

func TestWarRoundTrip(t *testing.T) {
	db := newTestDB(t)
	declarer, defender := uuid.New(), uuid.New()
	war := newTestWar(declarer, defender)

	if err := db.InsertWar(war); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.GetWar(war.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DeclaringGuildID != declarer || got.DefendingGuildID != defender {
		t.Errorf("sides = %v/%v, want %v/%v", got.DeclaringGuildID, got.DefendingGuildID, declarer, defender)
	}
	if got.Duration != war.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, war.Duration)
	}
	if got.Ended() {
		t.Error("fresh war reports ended")
	}
	if got.SurrenderedBy != uuid.Nil || got.PeaceProposedBy != uuid.Nil {
		t.Errorf("fresh war carries surrender/peace marks: %+v", got)
	}
}

func TestActiveWarBetween(t *testing.T) {
	db := newTestDB(t)
	declarer, defender := uuid.New(), uuid.New()
	war := newTestWar(declarer, defender)
	if err := db.InsertWar(war); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Both argument orders resolve the same war.
	for _, pair := range [][2]uuid.UUID{{declarer, defender}, {defender, declarer}} {
		got, err := db.ActiveWarBetween(pair[0], pair[1])
		if err != nil {
			t.Fatalf("ActiveWarBetween(%v, %v): %v", pair[0], pair[1], err)
		}
		if got.ID != war.ID {
			t.Errorf("found war %v, want %v", got.ID, war.ID)
		}
	}

	if _, err := db.ActiveWarBetween(declarer, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unrelated pair: err = %v, want ErrNotFound", err)
	}

	// An ended war no longer matches.
	war.EndedAt = testTime().Add(time.Hour)
	war.SurrenderedBy = defender
	if err := db.UpdateWar(war); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := db.ActiveWarBetween(declarer, defender); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ended war still active: err = %v, want ErrNotFound", err)
	}
}

func TestExpiredWars(t *testing.T) {
	db := newTestDB(t)
	declarer, defender := uuid.New(), uuid.New()

	short := newTestWar(declarer, defender)
	short.Duration = time.Hour
	if err := db.InsertWar(short); err != nil {
		t.Fatalf("insert short: %v", err)
	}
	long := newTestWar(uuid.New(), uuid.New())
	if err := db.InsertWar(long); err != nil {
		t.Fatalf("insert long: %v", err)
	}

	expired, err := db.ExpiredWars(testTime().Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("ExpiredWars: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != short.ID {
		t.Fatalf("expired = %+v, want just %v", expired, short.ID)
	}

	// Exactly at the boundary counts as expired.
	atBoundary, err := db.ExpiredWars(testTime().Add(time.Hour))
	if err != nil {
		t.Fatalf("ExpiredWars at boundary: %v", err)
	}
	if len(atBoundary) != 1 {
		t.Errorf("boundary expired = %d wars, want 1", len(atBoundary))
	}
}

func TestWarHistoryOrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	g := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		war := newTestWar(g, uuid.New())
		war.EndedAt = testTime().Add(time.Duration(i) * time.Hour)
		if err := db.InsertWar(war); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		ids = append(ids, war.ID)
	}
	open := newTestWar(g, uuid.New())
	if err := db.InsertWar(open); err != nil {
		t.Fatalf("insert open: %v", err)
	}

	history, err := db.WarHistory(g, 2)
	if err != nil {
		t.Fatalf("WarHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].ID != ids[2] || history[1].ID != ids[1] {
		t.Errorf("history order = %v, %v; want %v, %v", history[0].ID, history[1].ID, ids[2], ids[1])
	}

	// Zero limit means everything, matching the transaction log query.
	all, err := db.WarHistory(g, 0)
	if err != nil {
		t.Fatalf("WarHistory(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unlimited history length = %d, want 3", len(all))
	}
}

func TestWarRecordCountsOnlySurrenders(t *testing.T) {
	db := newTestDB(t)
	g := uuid.New()

	// g wins: opponent surrendered.
	won := newTestWar(g, uuid.New())
	won.EndedAt = testTime()
	won.SurrenderedBy = won.DefendingGuildID
	if err := db.InsertWar(won); err != nil {
		t.Fatalf("insert won: %v", err)
	}

	// g loses: g surrendered as defender.
	lost := newTestWar(uuid.New(), g)
	lost.EndedAt = testTime()
	lost.SurrenderedBy = g
	if err := db.InsertWar(lost); err != nil {
		t.Fatalf("insert lost: %v", err)
	}

	// Expired without surrender: a draw, counted for neither side.
	drawn := newTestWar(g, uuid.New())
	drawn.EndedAt = testTime()
	if err := db.InsertWar(drawn); err != nil {
		t.Fatalf("insert drawn: %v", err)
	}

	wins, losses, err := db.WarRecord(g)
	if err != nil {
		t.Fatalf("WarRecord: %v", err)
	}
	if wins != 1 || losses != 1 {
		t.Errorf("record = %d/%d, want 1/1", wins, losses)
	}
}

func TestWarRecordEmpty(t *testing.T) {
	db := newTestDB(t)
	wins, losses, err := db.WarRecord(uuid.New())
	if err != nil {
		t.Fatalf("WarRecord: %v", err)
	}
	if wins != 0 || losses != 0 {
		t.Errorf("record = %d/%d, want 0/0", wins, losses)
	}
}

func TestDeleteWarsFor(t *testing.T) {
	db := newTestDB(t)
	g, other := uuid.New(), uuid.New()
	war := newTestWar(g, other)
	if err := db.InsertWar(war); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.DeleteWarsFor(g); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.GetWar(war.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
}
