// Package diplomacy implements the relation state machine and the war
// lifecycle between guild pairs.
//
// Per pair the machine moves through:
//  1. NEUTRAL → PENDING_ALLIANCE → ALLIANCE → NEUTRAL
//  2. NEUTRAL → WAR → NEUTRAL (surrender, negotiated peace, or expiry)
//
// The absence of a relation record means NEUTRAL. An alliance never turns
// into a war directly: callers break the alliance first.
package diplomacy

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

// Config controls war mechanics.
type Config struct {
	WarDuration        time.Duration // how long a war runs before lapsing
	WarDeclarationCost int64         // debited from the declarer's vault, 0 disables
}

// DefaultConfig returns the standard war settings.
func DefaultConfig() Config {
	return Config{
		WarDuration:        7 * 24 * time.Hour,
		WarDeclarationCost: 0,
	}
}

// Service applies diplomatic transitions against the stores.
type Service struct {
	config    Config
	relations domain.RelationStore
	wars      domain.WarStore
	vault     domain.VaultStore
	clock     domain.Clock
}

// New creates a diplomacy service. The vault store is consulted only when a
// war declaration cost is configured.
func New(cfg Config, relations domain.RelationStore, wars domain.WarStore, vault domain.VaultStore, clock domain.Clock) *Service {
	return &Service{
		config:    cfg,
		relations: relations,
		wars:      wars,
		vault:     vault,
		clock:     clock,
	}
}

// ─── Alliance Flow ──────────────────────────────────────────────────────────

// RequestAlliance creates a pending alliance request from one guild to
// another. The pair must be NEUTRAL; a second request while one is pending
// fails with ErrDuplicateRequest instead of creating a new record.
func (s *Service) RequestAlliance(fromGuild, toGuild, actorID uuid.UUID) (domain.Relation, error) {
	if fromGuild == toGuild {
		return domain.Relation{}, domain.ErrInvalidState
	}
	existing, err := s.relations.GetRelation(fromGuild, toGuild)
	switch {
	case err == nil:
		if existing.Status == domain.StatusPending {
			return domain.Relation{}, domain.ErrDuplicateRequest
		}
		return domain.Relation{}, domain.ErrInvalidState
	case err != domain.ErrNotFound:
		return domain.Relation{}, fmt.Errorf("check relation: %w", err)
	}

	a, b := domain.OrderPair(fromGuild, toGuild)
	rel := domain.Relation{
		ID:          uuid.New(),
		GuildA:      a,
		GuildB:      b,
		Type:        domain.RelationAlliance,
		Status:      domain.StatusPending,
		InitiatorID: fromGuild,
		ActorID:     actorID,
		RequestedAt: s.clock.Now(),
	}
	if err := s.relations.InsertRelation(rel); err != nil {
		return domain.Relation{}, fmt.Errorf("insert alliance request: %w", err)
	}
	log.Printf("[diplomacy] alliance requested %s -> %s", fromGuild, toGuild)
	return rel, nil
}

// RespondAlliance resolves a pending alliance request. Accepting activates
// the alliance and stamps EstablishedAt; declining deletes the record,
// returning the pair to NEUTRAL. Fails with ErrNoPendingRequest when no
// request is pending for the pair.
func (s *Service) RespondAlliance(guildA, guildB uuid.UUID, accept bool) (domain.Relation, error) {
	rel, err := s.pendingAlliance(guildA, guildB)
	if err != nil {
		return domain.Relation{}, err
	}
	if !accept {
		if err := s.relations.DeleteRelation(rel.ID); err != nil {
			return domain.Relation{}, fmt.Errorf("delete declined request: %w", err)
		}
		log.Printf("[diplomacy] alliance declined %s / %s", rel.GuildA, rel.GuildB)
		return domain.Relation{}, nil
	}
	rel.Status = domain.StatusActive
	rel.EstablishedAt = s.clock.Now()
	if err := s.relations.UpdateRelation(rel); err != nil {
		return domain.Relation{}, fmt.Errorf("activate alliance: %w", err)
	}
	log.Printf("[diplomacy] alliance formed %s / %s", rel.GuildA, rel.GuildB)
	return rel, nil
}

// CancelRequest lets the requesting guild withdraw its own pending alliance
// request. A guild cannot cancel a request it did not initiate.
func (s *Service) CancelRequest(fromGuild, toGuild uuid.UUID) error {
	rel, err := s.pendingAlliance(fromGuild, toGuild)
	if err != nil {
		return err
	}
	if rel.InitiatorID != fromGuild {
		return domain.ErrInvalidState
	}
	if err := s.relations.DeleteRelation(rel.ID); err != nil {
		return fmt.Errorf("delete cancelled request: %w", err)
	}
	return nil
}

// BreakAlliance dissolves an active alliance, returning the pair to NEUTRAL.
func (s *Service) BreakAlliance(guildA, guildB uuid.UUID) error {
	rel, err := s.relations.GetRelation(guildA, guildB)
	if err == domain.ErrNotFound {
		return domain.ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("check relation: %w", err)
	}
	if rel.Type != domain.RelationAlliance || rel.Status != domain.StatusActive {
		return domain.ErrInvalidState
	}
	if err := s.relations.DeleteRelation(rel.ID); err != nil {
		return fmt.Errorf("delete alliance: %w", err)
	}
	log.Printf("[diplomacy] alliance broken %s / %s", rel.GuildA, rel.GuildB)
	return nil
}

func (s *Service) pendingAlliance(guildA, guildB uuid.UUID) (domain.Relation, error) {
	rel, err := s.relations.GetRelation(guildA, guildB)
	if err == domain.ErrNotFound {
		return domain.Relation{}, domain.ErrNoPendingRequest
	}
	if err != nil {
		return domain.Relation{}, fmt.Errorf("check relation: %w", err)
	}
	if rel.Type != domain.RelationAlliance || rel.Status != domain.StatusPending {
		return domain.Relation{}, domain.ErrNoPendingRequest
	}
	return rel, nil
}

// ─── War Flow ───────────────────────────────────────────────────────────────

// DeclareWar opens a war between two guilds. An active alliance blocks the
// declaration with ErrStillAllied until it is explicitly broken; an ongoing
// war fails with ErrInvalidState. A pending alliance request is voided by
// the declaration. When a declaration cost is configured it is debited from
// the declarer's vault before any relation changes; insufficient funds fail
// the whole declaration.
func (s *Service) DeclareWar(declarer, defender, actorID uuid.UUID) (domain.War, error) {
	if declarer == defender {
		return domain.War{}, domain.ErrInvalidState
	}
	existing, err := s.relations.GetRelation(declarer, defender)
	switch {
	case err == nil:
		switch {
		case existing.Type == domain.RelationWar:
			return domain.War{}, domain.ErrInvalidState
		case existing.Type == domain.RelationAlliance && existing.Status == domain.StatusActive:
			return domain.War{}, domain.ErrStillAllied
		}
		// A pending alliance request does not survive a declaration.
		if err := s.relations.DeleteRelation(existing.ID); err != nil {
			return domain.War{}, fmt.Errorf("void pending request: %w", err)
		}
	case err != domain.ErrNotFound:
		return domain.War{}, fmt.Errorf("check relation: %w", err)
	}

	now := s.clock.Now()
	if s.config.WarDeclarationCost > 0 {
		_, err := s.vault.ApplyTransaction(declarer, -s.config.WarDeclarationCost, domain.VaultTransaction{
			ID:          uuid.New(),
			ActorID:     uuid.Nil,
			Kind:        domain.TxWithdraw,
			Amount:      s.config.WarDeclarationCost,
			Description: "war declaration",
			Timestamp:   now,
		})
		if err != nil {
			return domain.War{}, err
		}
	}

	a, b := domain.OrderPair(declarer, defender)
	rel := domain.Relation{
		ID:            uuid.New(),
		GuildA:        a,
		GuildB:        b,
		Type:          domain.RelationWar,
		Status:        domain.StatusActive,
		InitiatorID:   declarer,
		ActorID:       actorID,
		RequestedAt:   now,
		EstablishedAt: now,
	}
	if err := s.relations.InsertRelation(rel); err != nil {
		s.refundDeclarationCost(declarer, now)
		return domain.War{}, fmt.Errorf("insert war relation: %w", err)
	}
	war := domain.War{
		ID:               uuid.New(),
		DeclaringGuildID: declarer,
		DefendingGuildID: defender,
		StartedAt:        now,
		Duration:         s.config.WarDuration,
	}
	if err := s.wars.InsertWar(war); err != nil {
		if derr := s.relations.DeleteRelation(rel.ID); derr != nil {
			log.Printf("[diplomacy] orphaned WAR relation %s after failed war insert: %v", rel.ID, derr)
		}
		s.refundDeclarationCost(declarer, now)
		return domain.War{}, fmt.Errorf("insert war: %w", err)
	}
	log.Printf("[diplomacy] war declared %s -> %s (ends %s)", declarer, defender, war.ExpiresAt().Format(time.RFC3339))
	return war, nil
}

// refundDeclarationCost credits the declaration debit back when a later
// step of the declaration fails. A failed refund is an orphaned charge; it
// is logged with the guild id so operators can repair it from the ledger.
func (s *Service) refundDeclarationCost(declarer uuid.UUID, now time.Time) {
	if s.config.WarDeclarationCost <= 0 {
		return
	}
	_, err := s.vault.ApplyTransaction(declarer, s.config.WarDeclarationCost, domain.VaultTransaction{
		ID:          uuid.New(),
		ActorID:     uuid.Nil,
		Kind:        domain.TxDeposit,
		Amount:      s.config.WarDeclarationCost,
		Description: "war declaration refund",
		Timestamp:   now,
	})
	if err != nil {
		log.Printf("[diplomacy] declaration charge for %s could not be refunded: %v", declarer, err)
	}
}

// Surrender ends a war immediately, recording the loser. The surrendering
// guild must be one of the two parties.
func (s *Service) Surrender(warID, surrenderingGuildID uuid.UUID) (domain.War, error) {
	war, err := s.openWar(warID)
	if err != nil {
		return domain.War{}, err
	}
	if !war.Involves(surrenderingGuildID) {
		return domain.War{}, domain.ErrInvalidState
	}
	war.EndedAt = s.clock.Now()
	war.SurrenderedBy = surrenderingGuildID
	war.PeaceProposedBy = uuid.Nil
	if err := s.endWar(war); err != nil {
		return domain.War{}, err
	}
	log.Printf("[diplomacy] war %s ended by surrender of %s", war.ID, surrenderingGuildID)
	return war, nil
}

// ProposePeace records a peace offer inside an ongoing war. One unanswered
// proposal exists at a time; a second one fails with ErrDuplicateRequest.
func (s *Service) ProposePeace(warID, proposerGuildID uuid.UUID) (domain.War, error) {
	war, err := s.openWar(warID)
	if err != nil {
		return domain.War{}, err
	}
	if !war.Involves(proposerGuildID) {
		return domain.War{}, domain.ErrInvalidState
	}
	if war.PeaceProposedBy != uuid.Nil {
		return domain.War{}, domain.ErrDuplicateRequest
	}
	war.PeaceProposedBy = proposerGuildID
	if err := s.wars.UpdateWar(war); err != nil {
		return domain.War{}, fmt.Errorf("record peace proposal: %w", err)
	}
	return war, nil
}

// AcceptPeace ends the war without a recorded surrender. Only the side that
// did not propose may accept.
func (s *Service) AcceptPeace(warID, acceptingGuildID uuid.UUID) (domain.War, error) {
	war, err := s.openWar(warID)
	if err != nil {
		return domain.War{}, err
	}
	if !war.Involves(acceptingGuildID) {
		return domain.War{}, domain.ErrInvalidState
	}
	if war.PeaceProposedBy == uuid.Nil || war.PeaceProposedBy == acceptingGuildID {
		return domain.War{}, domain.ErrNoPendingRequest
	}
	war.EndedAt = s.clock.Now()
	war.PeaceProposedBy = uuid.Nil
	if err := s.endWar(war); err != nil {
		return domain.War{}, err
	}
	log.Printf("[diplomacy] war %s ended by peace agreement", war.ID)
	return war, nil
}

// RejectPeace declines a pending proposal; the war continues.
func (s *Service) RejectPeace(warID, rejectingGuildID uuid.UUID) (domain.War, error) {
	war, err := s.openWar(warID)
	if err != nil {
		return domain.War{}, err
	}
	if !war.Involves(rejectingGuildID) {
		return domain.War{}, domain.ErrInvalidState
	}
	if war.PeaceProposedBy == uuid.Nil || war.PeaceProposedBy == rejectingGuildID {
		return domain.War{}, domain.ErrNoPendingRequest
	}
	war.PeaceProposedBy = uuid.Nil
	if err := s.wars.UpdateWar(war); err != nil {
		return domain.War{}, fmt.Errorf("clear peace proposal: %w", err)
	}
	return war, nil
}

// DueWars lists ongoing wars whose duration elapsed by now.
func (s *Service) DueWars(now time.Time) ([]domain.War, error) {
	return s.wars.ExpiredWars(now)
}

// ExpireWar ends a single war if its duration elapsed by now, reverting the
// pair to NEUTRAL. Reports whether the war was ended by this call; a war
// already over or not yet due is left alone, which is what makes the sweep
// idempotent.
func (s *Service) ExpireWar(warID uuid.UUID, now time.Time) (bool, error) {
	war, err := s.wars.GetWar(warID)
	if err != nil {
		return false, err
	}
	if war.Ended() || !war.Expired(now) {
		return false, nil
	}
	war.EndedAt = now
	war.PeaceProposedBy = uuid.Nil
	if err := s.endWar(war); err != nil {
		return false, err
	}
	log.Printf("[diplomacy] war %s expired", war.ID)
	return true, nil
}

// ExpireWars ends every war whose duration elapsed by now. Safe to call
// repeatedly. Returns how many wars were ended.
func (s *Service) ExpireWars(now time.Time) (int, error) {
	due, err := s.DueWars(now)
	if err != nil {
		return 0, fmt.Errorf("list expired wars: %w", err)
	}
	ended := 0
	for _, war := range due {
		done, err := s.ExpireWar(war.ID, now)
		if err != nil {
			return ended, err
		}
		if done {
			ended++
		}
	}
	return ended, nil
}

// PurgeGuild removes every relation and war involving the guild. Called
// when the guild registry reports a deletion.
func (s *Service) PurgeGuild(guildID uuid.UUID) error {
	if err := s.relations.DeleteRelationsFor(guildID); err != nil {
		return fmt.Errorf("purge relations: %w", err)
	}
	if err := s.wars.DeleteWarsFor(guildID); err != nil {
		return fmt.Errorf("purge wars: %w", err)
	}
	return nil
}

func (s *Service) openWar(warID uuid.UUID) (domain.War, error) {
	war, err := s.wars.GetWar(warID)
	if err == domain.ErrNotFound {
		return domain.War{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.War{}, fmt.Errorf("load war: %w", err)
	}
	if war.Ended() {
		return domain.War{}, domain.ErrInvalidState
	}
	return war, nil
}

// endWar persists the terminal war state and removes the WAR relation.
func (s *Service) endWar(war domain.War) error {
	if err := s.wars.UpdateWar(war); err != nil {
		return fmt.Errorf("end war: %w", err)
	}
	rel, err := s.relations.GetRelation(war.DeclaringGuildID, war.DefendingGuildID)
	switch {
	case err == domain.ErrNotFound:
		return nil
	case err != nil:
		return fmt.Errorf("load war relation: %w", err)
	}
	if rel.Type != domain.RelationWar {
		return nil
	}
	if err := s.relations.DeleteRelation(rel.ID); err != nil && err != domain.ErrNotFound {
		return fmt.Errorf("delete war relation: %w", err)
	}
	return nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// RelationType reports the established relation for the pair. Pairs without
// a record and pairs with only a pending request are NEUTRAL.
func (s *Service) RelationType(guildA, guildB uuid.UUID) (domain.RelationType, error) {
	rel, err := s.relations.GetRelation(guildA, guildB)
	if err == domain.ErrNotFound {
		return domain.RelationNeutral, nil
	}
	if err != nil {
		return "", fmt.Errorf("check relation: %w", err)
	}
	if rel.Status != domain.StatusActive {
		return domain.RelationNeutral, nil
	}
	return rel.Type, nil
}

// RelationsFor returns every relation record involving the guild, pending
// ones included.
func (s *Service) RelationsFor(guildID uuid.UUID) ([]domain.Relation, error) {
	return s.relations.RelationsFor(guildID)
}

// PendingRequestsFor returns the guild's pending alliance requests, both
// outgoing and incoming.
func (s *Service) PendingRequestsFor(guildID uuid.UUID) ([]domain.Relation, error) {
	return s.relations.PendingFor(guildID)
}

// War returns a war by id.
func (s *Service) War(warID uuid.UUID) (domain.War, error) {
	return s.wars.GetWar(warID)
}

// ActiveWars returns the guild's ongoing wars.
func (s *Service) ActiveWars(guildID uuid.UUID) ([]domain.War, error) {
	return s.wars.ActiveWars(guildID)
}

// WarHistory returns the guild's ended wars, newest first.
func (s *Service) WarHistory(guildID uuid.UUID, limit int) ([]domain.War, error) {
	return s.wars.WarHistory(guildID, limit)
}

// WinLossRatio returns wins / (wins + losses) over decided wars. Wars that
// lapsed or ended in negotiated peace count for neither side. A guild with
// no decided wars has a ratio of 0.
func (s *Service) WinLossRatio(guildID uuid.UUID) (float64, error) {
	wins, losses, err := s.wars.WarRecord(guildID)
	if err != nil {
		return 0, fmt.Errorf("war record: %w", err)
	}
	total := wins + losses
	if total == 0 {
		return 0, nil
	}
	return float64(wins) / float64(total), nil
}
