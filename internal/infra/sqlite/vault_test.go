package sqlite

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

func testDeposit(actor uuid.UUID, amount int64) domain.VaultTransaction {
	return domain.VaultTransaction{
		ID:        uuid.New(),
		ActorID:   actor,
		Kind:      domain.TxDeposit,
		Amount:    amount,
		Timestamp: testTime(),
	}
}

func testWithdrawal(actor uuid.UUID, amount int64) domain.VaultTransaction {
	return domain.VaultTransaction{
		ID:        uuid.New(),
		ActorID:   actor,
		Kind:      domain.TxWithdraw,
		Amount:    amount,
		Timestamp: testTime(),
	}
}

func TestGetAccountCreatesZeroBalance(t *testing.T) {
	db := newTestDB(t)
	g := uuid.New()

	acct, err := db.GetAccount(g)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.GuildID != g || acct.Balance != 0 || acct.Version != 0 {
		t.Errorf("fresh account = %+v", acct)
	}

	// Second access returns the same row, not a reset.
	if _, err := db.ApplyTransaction(g, 50, testDeposit(uuid.New(), 50)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	acct, err = db.GetAccount(g)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if acct.Balance != 50 || acct.Version != 1 {
		t.Errorf("account after deposit = %+v, want balance 50 version 1", acct)
	}
}

func TestApplyTransactionDepositAndWithdraw(t *testing.T) {
	db := newTestDB(t)
	g, actor := uuid.New(), uuid.New()

	balance, err := db.ApplyTransaction(g, 100, testDeposit(actor, 100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance after deposit = %d, want 100", balance)
	}

	balance, err = db.ApplyTransaction(g, -30, testWithdrawal(actor, 30))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if balance != 70 {
		t.Errorf("balance after withdrawal = %d, want 70", balance)
	}

	log, err := db.Transactions(g, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("log length = %d, want 2", len(log))
	}
	// Newest first.
	if log[0].Kind != domain.TxWithdraw || log[0].BalanceAfter != 70 {
		t.Errorf("log[0] = %+v, want withdrawal ending at 70", log[0])
	}
	if log[1].Kind != domain.TxDeposit || log[1].BalanceAfter != 100 {
		t.Errorf("log[1] = %+v, want deposit ending at 100", log[1])
	}
}

func TestApplyTransactionInsufficientFunds(t *testing.T) {
	db := newTestDB(t)
	g, actor := uuid.New(), uuid.New()

	if _, err := db.ApplyTransaction(g, 100, testDeposit(actor, 100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := db.ApplyTransaction(g, -150, testWithdrawal(actor, 150))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// The failed attempt must leave no trace: balance intact, no log row.
	acct, err := db.GetAccount(g)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.Balance != 100 || acct.Version != 1 {
		t.Errorf("account after rejected withdrawal = %+v, want balance 100 version 1", acct)
	}
	log, err := db.Transactions(g, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(log) != 1 {
		t.Errorf("log length = %d, want 1", len(log))
	}
}

func TestApplyTransactionOverflow(t *testing.T) {
	db := newTestDB(t)
	g := uuid.New()

	if _, err := db.ApplyTransaction(g, math.MaxInt64-10, testDeposit(uuid.Nil, math.MaxInt64-10)); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	_, err := db.ApplyTransaction(g, 100, testDeposit(uuid.Nil, 100))
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestTransactionsLimit(t *testing.T) {
	db := newTestDB(t)
	g, actor := uuid.New(), uuid.New()
	for i := 0; i < 5; i++ {
		if _, err := db.ApplyTransaction(g, 10, testDeposit(actor, 10)); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}
	log, err := db.Transactions(g, 3)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(log) != 3 {
		t.Errorf("log length = %d, want 3", len(log))
	}
	if log[0].BalanceAfter != 50 {
		t.Errorf("newest BalanceAfter = %d, want 50", log[0].BalanceAfter)
	}
}

func TestContributions(t *testing.T) {
	db := newTestDB(t)
	g := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	steps := []struct {
		actor uuid.UUID
		delta int64
		entry func(uuid.UUID, int64) domain.VaultTransaction
	}{
		{alice, 100, testDeposit},
		{bob, 40, testDeposit},
		{alice, -25, testWithdrawal},
	}
	for _, s := range steps {
		amount := s.delta
		if amount < 0 {
			amount = -amount
		}
		if _, err := db.ApplyTransaction(g, s.delta, s.entry(s.actor, amount)); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	// System entry, excluded from the per-actor view.
	if _, err := db.ApplyTransaction(g, -10, testWithdrawal(uuid.Nil, 10)); err != nil {
		t.Fatalf("system withdrawal: %v", err)
	}

	contribs, err := db.Contributions(g)
	if err != nil {
		t.Fatalf("contributions: %v", err)
	}
	if len(contribs) != 2 {
		t.Fatalf("contributions = %d actors, want 2", len(contribs))
	}
	byActor := map[uuid.UUID]domain.MemberContribution{}
	for _, c := range contribs {
		byActor[c.ActorID] = c
	}
	if a := byActor[alice]; a.TotalDeposits != 100 || a.TotalWithdrawals != 25 || a.Net() != 75 || a.TransactionCount != 2 {
		t.Errorf("alice = %+v", a)
	}
	if b := byActor[bob]; b.TotalDeposits != 40 || b.TotalWithdrawals != 0 || b.TransactionCount != 1 {
		t.Errorf("bob = %+v", b)
	}
}

func TestSumTransactionsMatchesBalance(t *testing.T) {
	db := newTestDB(t)
	g, actor := uuid.New(), uuid.New()

	if _, err := db.ApplyTransaction(g, 500, testDeposit(actor, 500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := db.ApplyTransaction(g, -120, testWithdrawal(actor, 120)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	sum, err := db.SumTransactions(g)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	acct, err := db.GetAccount(g)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sum != acct.Balance || sum != 380 {
		t.Errorf("sum = %d, balance = %d, want both 380", sum, acct.Balance)
	}
}

func TestSumTransactionsEmptyLog(t *testing.T) {
	db := newTestDB(t)
	sum, err := db.SumTransactions(uuid.New())
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 0 {
		t.Errorf("sum = %d, want 0", sum)
	}
}

func TestDeleteAccount(t *testing.T) {
	db := newTestDB(t)
	g, actor := uuid.New(), uuid.New()
	if _, err := db.ApplyTransaction(g, 100, testDeposit(actor, 100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := db.DeleteAccount(g); err != nil {
		t.Fatalf("delete: %v", err)
	}

	acct, err := db.GetAccount(g)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if acct.Balance != 0 || acct.Version != 0 {
		t.Errorf("account recreated dirty: %+v", acct)
	}
	log, err := db.Transactions(g, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(log) != 0 {
		t.Errorf("log survived deletion: %d rows", len(log))
	}
}

func TestFlush(t *testing.T) {
	db := newTestDB(t)
	g := uuid.New()
	if _, err := db.ApplyTransaction(g, 1, domain.VaultTransaction{
		ID:        uuid.New(),
		Kind:      domain.TxDeposit,
		Amount:    1,
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
