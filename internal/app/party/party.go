// Package party coordinates multi-guild coalitions.
//
// A guild belongs to at most one ACTIVE party, counting only confirmed
// membership; open invites do not bind. Expiry is lazy: any read that finds
// an elapsed ExpiresAt marks the party EXPIRED before answering, so an
// expired party is never observed as active even without a sweep.
package party

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

// Config controls party creation.
type Config struct {
	DefaultTTL time.Duration // lifetime of new parties, 0 means no expiry
}

// DefaultConfig returns the standard party settings.
func DefaultConfig() Config {
	return Config{DefaultTTL: 0}
}

// Service manages the party lifecycle.
type Service struct {
	config  Config
	parties domain.PartyStore
	clock   domain.Clock
}

// New creates a party service.
func New(cfg Config, parties domain.PartyStore, clock domain.Clock) *Service {
	return &Service{config: cfg, parties: parties, clock: clock}
}

// CreateParty forms a party with the leader as sole confirmed member and the
// invitees pending. The leader must not already be in an active party. The
// name is optional but capped at 32 characters; duplicate and self invitees
// are dropped.
func (s *Service) CreateParty(leaderGuild uuid.UUID, name string, invitees []uuid.UUID) (domain.Party, error) {
	if len(name) > domain.MaxPartyNameLength {
		return domain.Party{}, domain.ErrInvalidState
	}
	if _, err := s.activeParty(leaderGuild); err == nil {
		return domain.Party{}, domain.ErrAlreadyInParty
	} else if err != domain.ErrNotFound {
		return domain.Party{}, err
	}

	seen := map[uuid.UUID]bool{leaderGuild: true}
	var invites []uuid.UUID
	for _, id := range invitees {
		if !seen[id] {
			seen[id] = true
			invites = append(invites, id)
		}
	}
	if 1+len(invites) > domain.MaxPartyGuilds {
		return domain.Party{}, domain.ErrPartyFull
	}

	now := s.clock.Now()
	party := domain.Party{
		ID:        uuid.New(),
		Name:      name,
		LeaderID:  leaderGuild,
		MemberIDs: []uuid.UUID{leaderGuild},
		InviteIDs: invites,
		Status:    domain.PartyActive,
		CreatedAt: now,
	}
	if s.config.DefaultTTL > 0 {
		party.ExpiresAt = now.Add(s.config.DefaultTTL)
	}
	if err := s.parties.InsertParty(party); err != nil {
		return domain.Party{}, fmt.Errorf("insert party: %w", err)
	}
	log.Printf("[party] %s created by %s with %d invites", party.ID, leaderGuild, len(invites))
	return party, nil
}

// AcceptInvite converts a guild's invite into confirmed membership. The
// guild must hold an invite, must not be in another active party, and the
// party must still have room.
func (s *Service) AcceptInvite(partyID, guildID uuid.UUID) (domain.Party, error) {
	party, err := s.liveParty(partyID)
	if err != nil {
		return domain.Party{}, err
	}
	if !party.HasInvite(guildID) {
		return domain.Party{}, domain.ErrNoPendingRequest
	}
	if _, err := s.activeParty(guildID); err == nil {
		return domain.Party{}, domain.ErrAlreadyInParty
	} else if err != domain.ErrNotFound {
		return domain.Party{}, err
	}
	if len(party.MemberIDs) >= domain.MaxPartyGuilds {
		return domain.Party{}, domain.ErrPartyFull
	}

	party.InviteIDs = removeID(party.InviteIDs, guildID)
	party.MemberIDs = append(party.MemberIDs, guildID)
	if err := s.parties.UpdateParty(party); err != nil {
		return domain.Party{}, fmt.Errorf("accept invite: %w", err)
	}
	log.Printf("[party] %s joined party %s", guildID, party.ID)
	return party, nil
}

// DeclineInvite removes a guild's invite with no other side effects.
func (s *Service) DeclineInvite(partyID, guildID uuid.UUID) error {
	party, err := s.liveParty(partyID)
	if err != nil {
		return err
	}
	if !party.HasInvite(guildID) {
		return domain.ErrNoPendingRequest
	}
	party.InviteIDs = removeID(party.InviteIDs, guildID)
	if err := s.parties.UpdateParty(party); err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	return nil
}

// LeaveParty removes a confirmed member. The leader leaving dissolves the
// party for everyone.
func (s *Service) LeaveParty(partyID, guildID uuid.UUID) error {
	party, err := s.liveParty(partyID)
	if err != nil {
		return err
	}
	if !party.HasMember(guildID) {
		return domain.ErrInvalidState
	}
	if guildID == party.LeaderID {
		party.Status = domain.PartyDissolved
		if err := s.parties.UpdateParty(party); err != nil {
			return fmt.Errorf("dissolve on leader exit: %w", err)
		}
		log.Printf("[party] %s dissolved, leader %s left", party.ID, guildID)
		return nil
	}
	party.MemberIDs = removeID(party.MemberIDs, guildID)
	if err := s.parties.UpdateParty(party); err != nil {
		return fmt.Errorf("leave party: %w", err)
	}
	log.Printf("[party] %s left party %s", guildID, party.ID)
	return nil
}

// Dissolve terminates the party. Only the leader guild may dissolve.
func (s *Service) Dissolve(partyID, actorGuild uuid.UUID) error {
	party, err := s.liveParty(partyID)
	if err != nil {
		return err
	}
	if actorGuild != party.LeaderID {
		return domain.ErrNotPartyLeader
	}
	party.Status = domain.PartyDissolved
	if err := s.parties.UpdateParty(party); err != nil {
		return fmt.Errorf("dissolve party: %w", err)
	}
	log.Printf("[party] %s dissolved by leader", party.ID)
	return nil
}

// ExpireParties marks every active party whose expiry elapsed as EXPIRED.
// The lazy read-path expiry makes this optional; it exists so operators can
// keep stored status in step with the clock. Returns how many parties were
// marked.
func (s *Service) ExpireParties(now time.Time) (int, error) {
	due, err := s.parties.ActivePartiesExpiredBy(now)
	if err != nil {
		return 0, fmt.Errorf("list expired parties: %w", err)
	}
	for _, party := range due {
		party.Status = domain.PartyExpired
		if err := s.parties.UpdateParty(party); err != nil {
			return 0, fmt.Errorf("expire party: %w", err)
		}
		log.Printf("[party] %s expired", party.ID)
	}
	return len(due), nil
}

// PurgeGuild drops the guild from every party. A party the guild led is
// dissolved first so the remaining members are not left leaderless.
func (s *Service) PurgeGuild(guildID uuid.UUID) error {
	party, err := s.parties.ActivePartyFor(guildID)
	switch {
	case err == nil:
		if party.LeaderID == guildID {
			party.Status = domain.PartyDissolved
			if err := s.parties.UpdateParty(party); err != nil {
				return fmt.Errorf("dissolve led party: %w", err)
			}
		}
	case err != domain.ErrNotFound:
		return fmt.Errorf("purge party membership: %w", err)
	}
	return s.parties.RemoveGuildFromParties(guildID)
}

// ─── Queries ────────────────────────────────────────────────────────────────

// GetParty returns the party, applying lazy expiry first.
func (s *Service) GetParty(partyID uuid.UUID) (domain.Party, error) {
	party, err := s.parties.GetParty(partyID)
	if err != nil {
		return domain.Party{}, err
	}
	return s.expireLazily(party)
}

// PartyOf returns the guild's active party, or ErrNotFound.
func (s *Service) PartyOf(guildID uuid.UUID) (domain.Party, error) {
	return s.activeParty(guildID)
}

// InvitesFor returns active parties holding an unanswered invite for the
// guild. Parties found expired on the way are dropped from the answer.
func (s *Service) InvitesFor(guildID uuid.UUID) ([]domain.Party, error) {
	parties, err := s.parties.InvitesFor(guildID)
	if err != nil {
		return nil, err
	}
	live := parties[:0]
	for _, party := range parties {
		party, err = s.expireLazily(party)
		if err != nil {
			return nil, err
		}
		if party.Status == domain.PartyActive {
			live = append(live, party)
		}
	}
	return live, nil
}

// activeParty returns the guild's active party after lazy expiry, or
// ErrNotFound.
func (s *Service) activeParty(guildID uuid.UUID) (domain.Party, error) {
	party, err := s.parties.ActivePartyFor(guildID)
	if err != nil {
		return domain.Party{}, err
	}
	party, err = s.expireLazily(party)
	if err != nil {
		return domain.Party{}, err
	}
	if party.Status != domain.PartyActive {
		return domain.Party{}, domain.ErrNotFound
	}
	return party, nil
}

// liveParty loads a party for mutation: it must exist and still be ACTIVE
// after lazy expiry.
func (s *Service) liveParty(partyID uuid.UUID) (domain.Party, error) {
	party, err := s.parties.GetParty(partyID)
	if err != nil {
		return domain.Party{}, err
	}
	party, err = s.expireLazily(party)
	if err != nil {
		return domain.Party{}, err
	}
	if party.Status != domain.PartyActive {
		return domain.Party{}, domain.ErrPartyInactive
	}
	return party, nil
}

// expireLazily flips an overdue active party to EXPIRED before it is
// observed.
func (s *Service) expireLazily(party domain.Party) (domain.Party, error) {
	if party.Status != domain.PartyActive || !party.ExpiredAt(s.clock.Now()) {
		return party, nil
	}
	party.Status = domain.PartyExpired
	if err := s.parties.UpdateParty(party); err != nil {
		return domain.Party{}, fmt.Errorf("lazy expire: %w", err)
	}
	log.Printf("[party] %s expired on read", party.ID)
	return party, nil
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
