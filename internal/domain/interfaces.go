package domain

import (
	"time"

	"github.com/google/uuid"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// RelationStore persists the single relation record per guild pair.
type RelationStore interface {
	// GetRelation returns the pair's relation, or ErrNotFound when the
	// pair is NEUTRAL (no record).
	GetRelation(guildA, guildB uuid.UUID) (Relation, error)
	InsertRelation(rel Relation) error
	UpdateRelation(rel Relation) error
	DeleteRelation(id uuid.UUID) error
	// RelationsFor returns every relation involving the guild.
	RelationsFor(guildID uuid.UUID) ([]Relation, error)
	// PendingFor returns pending requests involving the guild, both
	// outgoing and incoming.
	PendingFor(guildID uuid.UUID) ([]Relation, error)
	DeleteRelationsFor(guildID uuid.UUID) error
}

// WarStore persists war records, active and historical.
type WarStore interface {
	GetWar(id uuid.UUID) (War, error)
	InsertWar(war War) error
	UpdateWar(war War) error
	// ActiveWars returns unfinished wars involving the guild.
	ActiveWars(guildID uuid.UUID) ([]War, error)
	// ActiveWarBetween returns the unfinished war for the pair, or ErrNotFound.
	ActiveWarBetween(guildA, guildB uuid.UUID) (War, error)
	// ExpiredWars returns unfinished wars whose duration elapsed by now.
	ExpiredWars(now time.Time) ([]War, error)
	// WarHistory returns ended wars involving the guild, newest first.
	WarHistory(guildID uuid.UUID, limit int) ([]War, error)
	// WarRecord returns the guild's decided-war tally (wins, losses).
	WarRecord(guildID uuid.UUID) (wins, losses int64, err error)
	DeleteWarsFor(guildID uuid.UUID) error
}

// PartyStore persists coalitions and their membership.
type PartyStore interface {
	GetParty(id uuid.UUID) (Party, error)
	InsertParty(party Party) error
	UpdateParty(party Party) error
	// ActivePartyFor returns the guild's ACTIVE party, or ErrNotFound.
	ActivePartyFor(guildID uuid.UUID) (Party, error)
	// InvitesFor returns ACTIVE parties holding an unanswered invite for
	// the guild.
	InvitesFor(guildID uuid.UUID) ([]Party, error)
	// ActivePartiesExpiredBy returns ACTIVE parties whose expiry passed.
	ActivePartiesExpiredBy(now time.Time) ([]Party, error)
	RemoveGuildFromParties(guildID uuid.UUID) error
}

// VaultStore persists treasury accounts and the append-only transaction log.
// ApplyTransaction must mutate the account and append the log row as one
// atomic unit of work.
type VaultStore interface {
	// GetAccount returns the guild's account, creating a zero-balance
	// account on first access.
	GetAccount(guildID uuid.UUID) (VaultAccount, error)
	// ApplyTransaction atomically adjusts the balance by delta (positive
	// for deposits, negative for withdrawals), bumps the version, and
	// appends tx with BalanceAfter filled in. Returns the new balance.
	ApplyTransaction(guildID uuid.UUID, delta int64, tx VaultTransaction) (int64, error)
	Transactions(guildID uuid.UUID, limit int) ([]VaultTransaction, error)
	Contributions(guildID uuid.UUID) ([]MemberContribution, error)
	// SumTransactions recomputes the balance from the log (sanity check).
	SumTransactions(guildID uuid.UUID) (int64, error)
	DeleteAccount(guildID uuid.UUID) error
	// Flush blocks until prior mutations are on stable storage.
	Flush() error
}

// ─── External Collaborators ─────────────────────────────────────────────────

// PermissionAuthority answers whether an actor may perform an intent for a
// guild. Owned by the host server; the engine only consults it.
type PermissionAuthority interface {
	HasPermission(actorID, guildID uuid.UUID, kind PermissionKind) bool
}

// NotificationSink receives fire-and-forget human-readable outcomes.
// The engine never waits on it or depends on its success.
type NotificationSink interface {
	Notify(guildID uuid.UUID, message string)
}

// Clock is an injectable "now" source for deterministic expiry testing.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }
