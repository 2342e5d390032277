// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ─── Relation Types ─────────────────────────────────────────────────────────

// RelationType classifies the diplomatic state between two guilds.
type RelationType string

const (
	RelationNeutral  RelationType = "NEUTRAL"
	RelationAlliance RelationType = "ALLIANCE"
	RelationWar      RelationType = "WAR"
)

// RelationStatus tracks the request flow of a relation.
type RelationStatus string

const (
	StatusPending RelationStatus = "PENDING"
	StatusActive  RelationStatus = "ACTIVE"
)

// Relation is the single diplomatic record for an unordered guild pair.
// At most one relation record exists per pair; the absence of a record
// means the pair is NEUTRAL.
type Relation struct {
	ID            uuid.UUID      `json:"id"`
	GuildA        uuid.UUID      `json:"guild_a"` // always the lexicographically smaller id
	GuildB        uuid.UUID      `json:"guild_b"`
	Type          RelationType   `json:"type"`
	Status        RelationStatus `json:"status"`
	InitiatorID   uuid.UUID      `json:"initiator_id"` // guild that issued the request
	ActorID       uuid.UUID      `json:"actor_id"`     // player who issued it
	RequestedAt   time.Time      `json:"requested_at"`
	EstablishedAt time.Time      `json:"established_at,omitempty"`
}

// Involves reports whether the relation references the given guild.
func (r Relation) Involves(guildID uuid.UUID) bool {
	return r.GuildA == guildID || r.GuildB == guildID
}

// OtherGuild returns the counterpart guild for one side of the relation.
// Returns uuid.Nil when the given guild is not part of the relation.
func (r Relation) OtherGuild(guildID uuid.UUID) uuid.UUID {
	switch guildID {
	case r.GuildA:
		return r.GuildB
	case r.GuildB:
		return r.GuildA
	}
	return uuid.Nil
}

// OrderPair returns the two guild ids in their canonical (lexicographic)
// storage order. Every pair-keyed record and every pair-scoped lock uses
// this order, which is what makes cross-guild locking deadlock-free.
func OrderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

// ─── War Types ──────────────────────────────────────────────────────────────

// War is the specialization of an ACTIVE WAR relation. It survives the
// relation as a historical record once the war ends.
type War struct {
	ID               uuid.UUID     `json:"id"`
	DeclaringGuildID uuid.UUID     `json:"declaring_guild_id"`
	DefendingGuildID uuid.UUID     `json:"defending_guild_id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	EndedAt          time.Time     `json:"ended_at,omitempty"`
	SurrenderedBy    uuid.UUID     `json:"surrendered_by,omitempty"` // uuid.Nil unless a side surrendered
	PeaceProposedBy  uuid.UUID     `json:"peace_proposed_by,omitempty"`
}

// ExpiresAt returns the instant the war lapses on its own.
func (w War) ExpiresAt() time.Time {
	return w.StartedAt.Add(w.Duration)
}

// Ended reports whether the war has terminated.
func (w War) Ended() bool {
	return !w.EndedAt.IsZero()
}

// Expired reports whether the war's duration has elapsed at the given instant.
func (w War) Expired(now time.Time) bool {
	return !w.ExpiresAt().After(now)
}

// Involves reports whether the war references the given guild.
func (w War) Involves(guildID uuid.UUID) bool {
	return w.DeclaringGuildID == guildID || w.DefendingGuildID == guildID
}

// OtherSide returns the opposing guild, or uuid.Nil when the given guild is
// not a party to the war.
func (w War) OtherSide(guildID uuid.UUID) uuid.UUID {
	switch guildID {
	case w.DeclaringGuildID:
		return w.DefendingGuildID
	case w.DefendingGuildID:
		return w.DeclaringGuildID
	}
	return uuid.Nil
}

// Winner returns the victorious guild id, or uuid.Nil for an undecided
// outcome (expiry or negotiated peace).
func (w War) Winner() uuid.UUID {
	if w.SurrenderedBy == uuid.Nil {
		return uuid.Nil
	}
	if w.SurrenderedBy == w.DeclaringGuildID {
		return w.DefendingGuildID
	}
	return w.DeclaringGuildID
}

// ─── Party Types ────────────────────────────────────────────────────────────

// PartyStatus tracks a party's lifecycle.
type PartyStatus string

const (
	PartyActive    PartyStatus = "ACTIVE"
	PartyDissolved PartyStatus = "DISSOLVED"
	PartyExpired   PartyStatus = "EXPIRED"
)

// MaxPartyGuilds caps the coalition size.
const MaxPartyGuilds = 10

// MaxPartyNameLength caps the optional party name.
const MaxPartyNameLength = 32

// Party is a multi-guild coalition. The leader guild is always a confirmed
// member; invited guilds are tracked separately until they accept.
type Party struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name,omitempty"`
	LeaderID  uuid.UUID   `json:"leader_id"` // a guild id, always present in MemberIDs
	MemberIDs []uuid.UUID `json:"member_ids"`
	InviteIDs []uuid.UUID `json:"invite_ids,omitempty"`
	Status    PartyStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"` // zero means no expiry
}

// HasMember reports whether the guild is a confirmed member.
func (p Party) HasMember(guildID uuid.UUID) bool {
	for _, id := range p.MemberIDs {
		if id == guildID {
			return true
		}
	}
	return false
}

// HasInvite reports whether the guild holds an unanswered invite.
func (p Party) HasInvite(guildID uuid.UUID) bool {
	for _, id := range p.InviteIDs {
		if id == guildID {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the party's expiry has passed at the given
// instant. Parties without an expiry never expire.
func (p Party) ExpiredAt(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !p.ExpiresAt.After(now)
}

// ─── Vault Types ────────────────────────────────────────────────────────────

// VaultAccount is a guild's treasury balance. Version increments on every
// successful mutation and serves as the concurrency token.
type VaultAccount struct {
	GuildID uuid.UUID `json:"guild_id"`
	Balance int64     `json:"balance"`
	Version int64     `json:"version"`
}

// TransactionKind is the direction of a vault transaction.
type TransactionKind string

const (
	TxDeposit  TransactionKind = "DEPOSIT"
	TxWithdraw TransactionKind = "WITHDRAW"
)

// VaultTransaction is one immutable row of the append-only treasury log.
// ActorID is uuid.Nil for system-generated entries (war costs, fees).
type VaultTransaction struct {
	ID           uuid.UUID       `json:"id"`
	GuildID      uuid.UUID       `json:"guild_id"`
	ActorID      uuid.UUID       `json:"actor_id,omitempty"`
	Kind         TransactionKind `json:"kind"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	Description  string          `json:"description,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// MemberContribution summarizes one actor's deposits and withdrawals
// against a guild vault.
type MemberContribution struct {
	ActorID          uuid.UUID `json:"actor_id"`
	TotalDeposits    int64     `json:"total_deposits"`
	TotalWithdrawals int64     `json:"total_withdrawals"`
	TransactionCount int64     `json:"transaction_count"`
}

// Net returns deposits minus withdrawals.
func (c MemberContribution) Net() int64 {
	return c.TotalDeposits - c.TotalWithdrawals
}

// ─── Permission Kinds ───────────────────────────────────────────────────────

// PermissionKind names an intent checked against the external authority.
type PermissionKind string

const (
	PermManageRelations PermissionKind = "MANAGE_RELATIONS"
	PermManageParties   PermissionKind = "MANAGE_PARTIES"
	PermDeposit         PermissionKind = "DEPOSIT"
	PermWithdraw        PermissionKind = "WITHDRAW"
)
