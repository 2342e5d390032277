// Package engine is the single entry point for guild diplomacy and treasury
// operations.
//
// Every mutation goes through the same gate:
//  1. Ask the permission authority; a denial returns ErrPermissionDenied
//     before any state is touched.
//  2. Enter the serialization domain — the acting guild's lock, both
//     guilds' locks in canonical order for pair operations, the party's
//     and the acting guild's locks for party operations (the acting guild's
//     lock is what keeps its single-active-party invariant race-free).
//  3. Apply the transition through the owning service.
//  4. On success, notify the affected guilds. The sink is advisory: its
//     behavior never changes the outcome.
//
// Mutating calls block while waiting for their domain; issue them from
// worker goroutines, not from a loop that must not stall. Read-only queries
// skip the gate entirely and go straight to the stores.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/app/diplomacy"
	"github.com/guildforge/guildhall/internal/app/party"
	"github.com/guildforge/guildhall/internal/app/vault"
	"github.com/guildforge/guildhall/internal/currency"
	"github.com/guildforge/guildhall/internal/domain"
	"github.com/guildforge/guildhall/internal/infra/observability"
)

// Engine combines permission checks and per-guild serialization around the
// diplomacy, party and vault services.
type Engine struct {
	diplomacy *diplomacy.Service
	party     *party.Service
	vault     *vault.Service
	perms     domain.PermissionAuthority
	notify    domain.NotificationSink
	clock     domain.Clock
	locks     *lockTable
}

// New assembles the engine. The notification sink must not block; the
// engine calls it inline after successful mutations and ignores anything it
// does.
func New(d *diplomacy.Service, p *party.Service, v *vault.Service,
	perms domain.PermissionAuthority, notify domain.NotificationSink, clock domain.Clock) *Engine {
	return &Engine{
		diplomacy: d,
		party:     p,
		vault:     v,
		perms:     perms,
		notify:    notify,
		clock:     clock,
		locks:     newLockTable(),
	}
}

// Clock returns the engine's time source.
func (e *Engine) Clock() domain.Clock { return e.clock }

func (e *Engine) allowed(actorID, guildID uuid.UUID, kind domain.PermissionKind) error {
	if !e.perms.HasPermission(actorID, guildID, kind) {
		observability.PermissionDenials.Inc()
		return domain.ErrPermissionDenied
	}
	return nil
}

// ─── Diplomacy Mutations ────────────────────────────────────────────────────

// RequestAlliance issues an alliance request from the actor's guild.
func (e *Engine) RequestAlliance(actorID, fromGuild, toGuild uuid.UUID) (domain.Relation, error) {
	if err := e.allowed(actorID, fromGuild, domain.PermManageRelations); err != nil {
		return domain.Relation{}, err
	}
	defer e.locks.lockPair(fromGuild, toGuild)()
	rel, err := e.diplomacy.RequestAlliance(fromGuild, toGuild, actorID)
	observability.DiplomacyOps.WithLabelValues("requestAlliance", observability.Outcome(err)).Inc()
	if err == nil {
		e.notify.Notify(toGuild, "an alliance has been proposed to your guild")
	}
	return rel, err
}

// RespondAlliance accepts or declines the pending request between the
// responding guild and the other guild.
func (e *Engine) RespondAlliance(actorID, guildID, otherGuild uuid.UUID, accept bool) (domain.Relation, error) {
	if err := e.allowed(actorID, guildID, domain.PermManageRelations); err != nil {
		return domain.Relation{}, err
	}
	defer e.locks.lockPair(guildID, otherGuild)()
	rel, err := e.diplomacy.RespondAlliance(guildID, otherGuild, accept)
	observability.DiplomacyOps.WithLabelValues("respondAlliance", observability.Outcome(err)).Inc()
	if err == nil {
		if accept {
			e.notify.Notify(otherGuild, "your alliance proposal was accepted")
		} else {
			e.notify.Notify(otherGuild, "your alliance proposal was declined")
		}
	}
	return rel, err
}

// CancelRequest withdraws the guild's own pending alliance request.
func (e *Engine) CancelRequest(actorID, fromGuild, toGuild uuid.UUID) error {
	if err := e.allowed(actorID, fromGuild, domain.PermManageRelations); err != nil {
		return err
	}
	defer e.locks.lockPair(fromGuild, toGuild)()
	err := e.diplomacy.CancelRequest(fromGuild, toGuild)
	observability.DiplomacyOps.WithLabelValues("cancelRequest", observability.Outcome(err)).Inc()
	return err
}

// BreakAlliance dissolves the active alliance between the two guilds.
func (e *Engine) BreakAlliance(actorID, guildID, otherGuild uuid.UUID) error {
	if err := e.allowed(actorID, guildID, domain.PermManageRelations); err != nil {
		return err
	}
	defer e.locks.lockPair(guildID, otherGuild)()
	err := e.diplomacy.BreakAlliance(guildID, otherGuild)
	observability.DiplomacyOps.WithLabelValues("breakAlliance", observability.Outcome(err)).Inc()
	if err == nil {
		e.notify.Notify(otherGuild, "your alliance has been dissolved")
	}
	return err
}

// DeclareWar opens a war from the actor's guild against the defender.
func (e *Engine) DeclareWar(actorID, declarer, defender uuid.UUID) (domain.War, error) {
	if err := e.allowed(actorID, declarer, domain.PermManageRelations); err != nil {
		return domain.War{}, err
	}
	defer e.locks.lockPair(declarer, defender)()
	war, err := e.diplomacy.DeclareWar(declarer, defender, actorID)
	observability.DiplomacyOps.WithLabelValues("declareWar", observability.Outcome(err)).Inc()
	if err == nil {
		e.notify.Notify(defender, "war has been declared on your guild")
	}
	return war, err
}

// Surrender ends the war with the actor's guild as the loser.
func (e *Engine) Surrender(actorID, guildID, warID uuid.UUID) (domain.War, error) {
	return e.warMutation(actorID, guildID, warID, "surrender", func(w domain.War) (domain.War, error) {
		ended, err := e.diplomacy.Surrender(warID, guildID)
		if err == nil {
			observability.WarsEnded.WithLabelValues("surrender").Inc()
			e.notify.Notify(ended.Winner(), "your enemy has surrendered")
		}
		return ended, err
	})
}

// ProposePeace offers peace inside the actor's guild's ongoing war.
func (e *Engine) ProposePeace(actorID, guildID, warID uuid.UUID) (domain.War, error) {
	return e.warMutation(actorID, guildID, warID, "proposePeace", func(w domain.War) (domain.War, error) {
		updated, err := e.diplomacy.ProposePeace(warID, guildID)
		if err == nil {
			e.notify.Notify(updated.OtherSide(guildID), "peace has been proposed")
		}
		return updated, err
	})
}

// AcceptPeace ends the war without a loser.
func (e *Engine) AcceptPeace(actorID, guildID, warID uuid.UUID) (domain.War, error) {
	return e.warMutation(actorID, guildID, warID, "acceptPeace", func(w domain.War) (domain.War, error) {
		ended, err := e.diplomacy.AcceptPeace(warID, guildID)
		if err == nil {
			observability.WarsEnded.WithLabelValues("peace").Inc()
			e.notify.Notify(ended.OtherSide(guildID), "your peace proposal was accepted")
		}
		return ended, err
	})
}

// RejectPeace declines the pending peace proposal.
func (e *Engine) RejectPeace(actorID, guildID, warID uuid.UUID) (domain.War, error) {
	return e.warMutation(actorID, guildID, warID, "rejectPeace", func(w domain.War) (domain.War, error) {
		updated, err := e.diplomacy.RejectPeace(warID, guildID)
		if err == nil {
			e.notify.Notify(updated.OtherSide(guildID), "your peace proposal was rejected")
		}
		return updated, err
	})
}

// warMutation resolves the war's pair so the lock covers both sides, then
// runs the transition under it.
func (e *Engine) warMutation(actorID, guildID, warID uuid.UUID, name string,
	apply func(domain.War) (domain.War, error)) (domain.War, error) {
	if err := e.allowed(actorID, guildID, domain.PermManageRelations); err != nil {
		return domain.War{}, err
	}
	war, err := e.diplomacy.War(warID)
	if err != nil {
		observability.DiplomacyOps.WithLabelValues(name, "error").Inc()
		return domain.War{}, err
	}
	defer e.locks.lockPair(war.DeclaringGuildID, war.DefendingGuildID)()
	result, err := apply(war)
	observability.DiplomacyOps.WithLabelValues(name, observability.Outcome(err)).Inc()
	return result, err
}

// SweepWars ends every war whose duration elapsed. Each war is ended under
// its own pair lock, so the sweep serializes against explicit operations on
// the same war. Returns how many wars were ended.
func (e *Engine) SweepWars(now time.Time) (int, error) {
	observability.SweepRuns.WithLabelValues("wars").Inc()
	due, err := e.diplomacy.DueWars(now)
	if err != nil {
		return 0, fmt.Errorf("list due wars: %w", err)
	}
	ended := 0
	for _, war := range due {
		unlock := e.locks.lockPair(war.DeclaringGuildID, war.DefendingGuildID)
		done, err := e.diplomacy.ExpireWar(war.ID, now)
		unlock()
		if err != nil {
			return ended, err
		}
		if done {
			ended++
			observability.WarsEnded.WithLabelValues("expiry").Inc()
			e.notify.Notify(war.DeclaringGuildID, "your war has ended")
			e.notify.Notify(war.DefendingGuildID, "your war has ended")
		}
	}
	observability.SweepExpired.WithLabelValues("wars").Add(float64(ended))
	return ended, nil
}

// ─── Party Mutations ────────────────────────────────────────────────────────

// CreateParty forms a party led by the actor's guild.
func (e *Engine) CreateParty(actorID, leaderGuild uuid.UUID, name string, invitees []uuid.UUID) (domain.Party, error) {
	if err := e.allowed(actorID, leaderGuild, domain.PermManageParties); err != nil {
		return domain.Party{}, err
	}
	defer e.locks.lock(leaderGuild)()
	created, err := e.party.CreateParty(leaderGuild, name, invitees)
	observability.PartyOps.WithLabelValues("createParty", observability.Outcome(err)).Inc()
	if err == nil {
		for _, id := range created.InviteIDs {
			e.notify.Notify(id, "your guild has been invited to a party")
		}
	}
	return created, err
}

// AcceptInvite joins the actor's guild to the party it was invited to.
func (e *Engine) AcceptInvite(actorID, guildID, partyID uuid.UUID) (domain.Party, error) {
	if err := e.allowed(actorID, guildID, domain.PermManageParties); err != nil {
		return domain.Party{}, err
	}
	defer e.locks.lockPair(partyID, guildID)()
	joined, err := e.party.AcceptInvite(partyID, guildID)
	observability.PartyOps.WithLabelValues("acceptInvite", observability.Outcome(err)).Inc()
	if err == nil {
		e.notify.Notify(joined.LeaderID, "a guild has joined your party")
	}
	return joined, err
}

// DeclineInvite drops the actor's guild's invite.
func (e *Engine) DeclineInvite(actorID, guildID, partyID uuid.UUID) error {
	if err := e.allowed(actorID, guildID, domain.PermManageParties); err != nil {
		return err
	}
	defer e.locks.lockPair(partyID, guildID)()
	err := e.party.DeclineInvite(partyID, guildID)
	observability.PartyOps.WithLabelValues("declineInvite", observability.Outcome(err)).Inc()
	return err
}

// LeaveParty removes the actor's guild from the party.
func (e *Engine) LeaveParty(actorID, guildID, partyID uuid.UUID) error {
	if err := e.allowed(actorID, guildID, domain.PermManageParties); err != nil {
		return err
	}
	defer e.locks.lockPair(partyID, guildID)()
	err := e.party.LeaveParty(partyID, guildID)
	observability.PartyOps.WithLabelValues("leaveParty", observability.Outcome(err)).Inc()
	return err
}

// DissolveParty terminates the party; the actor's guild must lead it.
func (e *Engine) DissolveParty(actorID, guildID, partyID uuid.UUID) error {
	if err := e.allowed(actorID, guildID, domain.PermManageParties); err != nil {
		return err
	}
	defer e.locks.lockPair(partyID, guildID)()
	err := e.party.Dissolve(partyID, guildID)
	observability.PartyOps.WithLabelValues("dissolve", observability.Outcome(err)).Inc()
	return err
}

// SweepParties marks overdue parties EXPIRED. Optional next to the lazy
// read-path expiry; returns how many parties were marked.
func (e *Engine) SweepParties(now time.Time) (int, error) {
	observability.SweepRuns.WithLabelValues("parties").Inc()
	n, err := e.party.ExpireParties(now)
	observability.SweepExpired.WithLabelValues("parties").Add(float64(n))
	return n, err
}

// ─── Vault Mutations ────────────────────────────────────────────────────────

// Deposit credits the guild vault on behalf of the actor.
func (e *Engine) Deposit(actorID, guildID uuid.UUID, amount int64, description string) (int64, error) {
	if err := e.allowed(actorID, guildID, domain.PermDeposit); err != nil {
		return 0, err
	}
	defer e.locks.lock(guildID)()
	balance, err := e.vault.Deposit(guildID, actorID, amount, description)
	observability.VaultOps.WithLabelValues("deposit", observability.Outcome(err)).Inc()
	return balance, err
}

// Withdraw debits the guild vault on behalf of the actor.
func (e *Engine) Withdraw(actorID, guildID uuid.UUID, amount int64, description string) (int64, error) {
	if err := e.allowed(actorID, guildID, domain.PermWithdraw); err != nil {
		return 0, err
	}
	defer e.locks.lock(guildID)()
	balance, err := e.vault.Withdraw(guildID, actorID, amount, description)
	observability.VaultOps.WithLabelValues("withdraw", observability.Outcome(err)).Inc()
	return balance, err
}

// CollectJoinFee deposits a guild-entry fee paid by the joining actor. A
// system-side mutation, not permission-gated: the host calls it as part of
// its own join flow.
func (e *Engine) CollectJoinFee(guildID, actorID uuid.UUID, amount int64) (int64, error) {
	defer e.locks.lock(guildID)()
	balance, err := e.vault.JoinFee(guildID, actorID, amount)
	observability.VaultOps.WithLabelValues("joinFee", observability.Outcome(err)).Inc()
	return balance, err
}

// ForceFlush blocks until every mutation committed before the call is on
// stable storage.
func (e *Engine) ForceFlush() error {
	observability.VaultFlushes.Inc()
	return e.vault.ForceFlush()
}

// ─── Cascade ────────────────────────────────────────────────────────────────

// OnGuildDeleted removes everything the engine holds for a deleted guild:
// relations, wars, party membership, the vault account and its log. Called
// by the guild registry; pair counterparts keep their own records only
// where those do not reference the deleted guild.
//
// The lock set covers the guild and every active party holding its rows,
// so a concurrent membership rewrite on one of those parties cannot
// reinsert rows the cascade already removed. Inactive parties are never
// rewritten, so their leftover rows need no lock. The guild's party set can
// only grow before its own lock is held, hence the re-check after locking.
func (e *Engine) OnGuildDeleted(guildID uuid.UUID) error {
	for {
		partyIDs, err := e.partyDomains(guildID)
		if err != nil {
			return err
		}
		unlock := e.locks.lockMany(append(partyIDs, guildID))
		confirm, err := e.partyDomains(guildID)
		if err != nil {
			unlock()
			return err
		}
		if !sameIDSet(partyIDs, confirm) {
			unlock()
			continue
		}

		err = e.purgeLocked(guildID)
		unlock()
		return err
	}
}

func (e *Engine) purgeLocked(guildID uuid.UUID) error {
	if err := e.diplomacy.PurgeGuild(guildID); err != nil {
		return err
	}
	if err := e.party.PurgeGuild(guildID); err != nil {
		return err
	}
	return e.vault.PurgeGuild(guildID)
}

// partyDomains lists the active parties whose rows the cascade touches: the
// guild's own party plus every party holding an open invite for it.
func (e *Engine) partyDomains(guildID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	current, err := e.party.PartyOf(guildID)
	switch {
	case err == nil:
		ids = append(ids, current.ID)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	invites, err := e.party.InvitesFor(guildID)
	if err != nil {
		return nil, err
	}
	for _, p := range invites {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func sameIDSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

// ─── Read Queries ───────────────────────────────────────────────────────────
// Queries bypass serialization; the store answers from committed state.

func (e *Engine) RelationType(guildA, guildB uuid.UUID) (domain.RelationType, error) {
	return e.diplomacy.RelationType(guildA, guildB)
}

func (e *Engine) RelationsFor(guildID uuid.UUID) ([]domain.Relation, error) {
	return e.diplomacy.RelationsFor(guildID)
}

func (e *Engine) PendingRequestsFor(guildID uuid.UUID) ([]domain.Relation, error) {
	return e.diplomacy.PendingRequestsFor(guildID)
}

func (e *Engine) ActiveWars(guildID uuid.UUID) ([]domain.War, error) {
	return e.diplomacy.ActiveWars(guildID)
}

func (e *Engine) WarHistory(guildID uuid.UUID, limit int) ([]domain.War, error) {
	return e.diplomacy.WarHistory(guildID, limit)
}

func (e *Engine) WinLossRatio(guildID uuid.UUID) (float64, error) {
	return e.diplomacy.WinLossRatio(guildID)
}

func (e *Engine) GetParty(partyID uuid.UUID) (domain.Party, error) {
	return e.party.GetParty(partyID)
}

func (e *Engine) PartyOf(guildID uuid.UUID) (domain.Party, error) {
	return e.party.PartyOf(guildID)
}

func (e *Engine) PartyInvitesFor(guildID uuid.UUID) ([]domain.Party, error) {
	return e.party.InvitesFor(guildID)
}

func (e *Engine) Balance(guildID uuid.UUID) (int64, error) {
	return e.vault.Balance(guildID)
}

func (e *Engine) Account(guildID uuid.UUID) (domain.VaultAccount, error) {
	return e.vault.Account(guildID)
}

func (e *Engine) TransactionHistory(guildID uuid.UUID, limit int) ([]domain.VaultTransaction, error) {
	return e.vault.TransactionHistory(guildID, limit)
}

func (e *Engine) MemberContributions(guildID uuid.UUID) ([]domain.MemberContribution, error) {
	return e.vault.MemberContributions(guildID)
}

func (e *Engine) ReconcileBalance(guildID uuid.UUID) (int64, error) {
	return e.vault.ReconcileBalance(guildID)
}

func (e *Engine) ToUnits(amount int64) ([]currency.Unit, error) {
	return e.vault.ToUnits(amount)
}

func (e *Engine) FromUnits(units []currency.Unit) (int64, error) {
	return e.vault.FromUnits(units)
}
