// Package vault is the guild treasury ledger.
//
// A balance is a non-negative int64 of the smallest currency unit. Every
// mutation appends an immutable transaction row in the same unit of work as
// the balance change, so the log always replays to the stored balance.
package vault

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/currency"
	"github.com/guildforge/guildhall/internal/domain"
)

// Service exposes treasury operations over the store and converter.
type Service struct {
	store     domain.VaultStore
	converter *currency.Converter
	clock     domain.Clock
}

// New creates a vault service.
func New(store domain.VaultStore, converter *currency.Converter, clock domain.Clock) *Service {
	return &Service{store: store, converter: converter, clock: clock}
}

// Balance returns the guild's current balance.
func (s *Service) Balance(guildID uuid.UUID) (int64, error) {
	acct, err := s.store.GetAccount(guildID)
	if err != nil {
		return 0, fmt.Errorf("read account: %w", err)
	}
	return acct.Balance, nil
}

// Account returns the full account record, version token included.
func (s *Service) Account(guildID uuid.UUID) (domain.VaultAccount, error) {
	return s.store.GetAccount(guildID)
}

// Deposit credits the vault and logs a DEPOSIT attributed to the actor.
// Returns the new balance. Amounts of zero or less fail with
// ErrInvalidAmount.
func (s *Service) Deposit(guildID, actorID uuid.UUID, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	balance, err := s.store.ApplyTransaction(guildID, amount, domain.VaultTransaction{
		ID:          uuid.New(),
		ActorID:     actorID,
		Kind:        domain.TxDeposit,
		Amount:      amount,
		Description: description,
		Timestamp:   s.clock.Now(),
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[vault] deposit %d to %s, balance %d", amount, guildID, balance)
	return balance, nil
}

// Withdraw debits the vault and logs a WITHDRAW attributed to the actor.
// Returns the new balance. A withdrawal exceeding the balance fails with
// ErrInsufficientFunds and leaves no trace: no balance change, no log row.
func (s *Service) Withdraw(guildID, actorID uuid.UUID, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	balance, err := s.store.ApplyTransaction(guildID, -amount, domain.VaultTransaction{
		ID:          uuid.New(),
		ActorID:     actorID,
		Kind:        domain.TxWithdraw,
		Amount:      amount,
		Description: description,
		Timestamp:   s.clock.Now(),
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[vault] withdraw %d from %s, balance %d", amount, guildID, balance)
	return balance, nil
}

// JoinFee collects a guild-entry fee from the joining actor as a deposit
// into the guild vault.
func (s *Service) JoinFee(guildID, actorID uuid.UUID, amount int64) (int64, error) {
	return s.Deposit(guildID, actorID, amount, "join fee")
}

// ForceFlush is the durability barrier: it returns only after every prior
// mutation reached stable storage. Callers use it after high-value
// withdrawals.
func (s *Service) ForceFlush() error {
	return s.store.Flush()
}

// TransactionHistory returns the guild's log entries, newest first. A limit
// of zero or less returns everything.
func (s *Service) TransactionHistory(guildID uuid.UUID, limit int) ([]domain.VaultTransaction, error) {
	return s.store.Transactions(guildID, limit)
}

// MemberContributions returns per-actor deposit and withdrawal totals.
func (s *Service) MemberContributions(guildID uuid.UUID) ([]domain.MemberContribution, error) {
	return s.store.Contributions(guildID)
}

// ReconcileBalance replays the transaction log and compares it with the
// stored balance. A mismatch is reported as an error carrying both values;
// the store is left untouched.
func (s *Service) ReconcileBalance(guildID uuid.UUID) (int64, error) {
	acct, err := s.store.GetAccount(guildID)
	if err != nil {
		return 0, fmt.Errorf("read account: %w", err)
	}
	sum, err := s.store.SumTransactions(guildID)
	if err != nil {
		return 0, fmt.Errorf("replay log: %w", err)
	}
	if sum != acct.Balance {
		return acct.Balance, fmt.Errorf("vault %s: log replays to %d, account holds %d: %w",
			guildID, sum, acct.Balance, domain.ErrInvalidState)
	}
	return acct.Balance, nil
}

// PurgeGuild deletes the guild's account and its entire log.
func (s *Service) PurgeGuild(guildID uuid.UUID) error {
	return s.store.DeleteAccount(guildID)
}

// ToUnits breaks an amount into denomination counts, largest first.
func (s *Service) ToUnits(amount int64) ([]currency.Unit, error) {
	return s.converter.ToUnits(amount)
}

// FromUnits totals denomination counts back into an amount.
func (s *Service) FromUnits(units []currency.Unit) (int64, error) {
	return s.converter.FromUnits(units)
}
