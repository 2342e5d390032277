package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

// ─── Party Store ────────────────────────────────────────────────────────────
// Membership lives in party_guilds with a role of MEMBER or INVITE.

const (
	roleMember = "MEMBER"
	roleInvite = "INVITE"
)

// GetParty returns a party with its membership, or ErrNotFound.
func (db *DB) GetParty(id uuid.UUID) (domain.Party, error) {
	row := db.db.QueryRow(`
		SELECT id, name, leader_id, status, created_at, expires_at
		FROM parties WHERE id = ?
	`, id.String())
	party, err := scanParty(row)
	if err != nil {
		return domain.Party{}, err
	}
	if err := db.loadPartyGuilds(&party); err != nil {
		return domain.Party{}, err
	}
	return party, nil
}

// InsertParty stores a new party and its membership rows.
func (db *DB) InsertParty(party domain.Party) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert party: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO parties (id, name, leader_id, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, party.ID.String(), party.Name, party.LeaderID.String(), string(party.Status),
		encodeTime(party.CreatedAt), encodeNullableTime(party.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	if err := insertPartyGuilds(tx, party); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateParty rewrites a party's mutable columns and replaces its
// membership rows.
func (db *DB) UpdateParty(party domain.Party) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin update party: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE parties SET name = ?, status = ?, expires_at = ? WHERE id = ?
	`, party.Name, string(party.Status), encodeNullableTime(party.ExpiresAt), party.ID.String())
	if err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM party_guilds WHERE party_id = ?`, party.ID.String()); err != nil {
		return fmt.Errorf("clear party membership: %w", err)
	}
	if err := insertPartyGuilds(tx, party); err != nil {
		return err
	}
	return tx.Commit()
}

// ActivePartyFor returns the guild's ACTIVE party, or ErrNotFound.
// A guild belongs to at most one ACTIVE party at a time.
func (db *DB) ActivePartyFor(guildID uuid.UUID) (domain.Party, error) {
	row := db.db.QueryRow(`
		SELECT p.id, p.name, p.leader_id, p.status, p.created_at, p.expires_at
		FROM parties p
		JOIN party_guilds pg ON pg.party_id = p.id
		WHERE pg.guild_id = ? AND pg.role = ? AND p.status = ?
	`, guildID.String(), roleMember, string(domain.PartyActive))
	party, err := scanParty(row)
	if err != nil {
		return domain.Party{}, err
	}
	if err := db.loadPartyGuilds(&party); err != nil {
		return domain.Party{}, err
	}
	return party, nil
}

// InvitesFor returns ACTIVE parties holding an unanswered invite for the guild.
func (db *DB) InvitesFor(guildID uuid.UUID) ([]domain.Party, error) {
	rows, err := db.db.Query(`
		SELECT p.id, p.name, p.leader_id, p.status, p.created_at, p.expires_at
		FROM parties p
		JOIN party_guilds pg ON pg.party_id = p.id
		WHERE pg.guild_id = ? AND pg.role = ? AND p.status = ?
	`, guildID.String(), roleInvite, string(domain.PartyActive))
	if err != nil {
		return nil, fmt.Errorf("query invites: %w", err)
	}
	defer rows.Close()
	return db.collectParties(rows)
}

// ActivePartiesExpiredBy returns ACTIVE parties whose expiry passed.
func (db *DB) ActivePartiesExpiredBy(now time.Time) ([]domain.Party, error) {
	rows, err := db.db.Query(`
		SELECT id, name, leader_id, status, created_at, expires_at
		FROM parties
		WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
	`, string(domain.PartyActive), encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("query expired parties: %w", err)
	}
	defer rows.Close()
	return db.collectParties(rows)
}

// RemoveGuildFromParties drops the guild's membership and invite rows.
// Part of the guild-deletion cascade; parties left empty are the sweep's
// concern, not this call's.
func (db *DB) RemoveGuildFromParties(guildID uuid.UUID) error {
	_, err := db.db.Exec(`DELETE FROM party_guilds WHERE guild_id = ?`, guildID.String())
	if err != nil {
		return fmt.Errorf("remove guild from parties: %w", err)
	}
	return nil
}

func insertPartyGuilds(tx *sql.Tx, party domain.Party) error {
	for _, id := range party.MemberIDs {
		if _, err := tx.Exec(`INSERT INTO party_guilds (party_id, guild_id, role) VALUES (?, ?, ?)`,
			party.ID.String(), id.String(), roleMember); err != nil {
			return fmt.Errorf("insert party member: %w", err)
		}
	}
	for _, id := range party.InviteIDs {
		if _, err := tx.Exec(`INSERT INTO party_guilds (party_id, guild_id, role) VALUES (?, ?, ?)`,
			party.ID.String(), id.String(), roleInvite); err != nil {
			return fmt.Errorf("insert party invite: %w", err)
		}
	}
	return nil
}

func (db *DB) collectParties(rows *sql.Rows) ([]domain.Party, error) {
	var result []domain.Party
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, party)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		if err := db.loadPartyGuilds(&result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (db *DB) loadPartyGuilds(party *domain.Party) error {
	rows, err := db.db.Query(`
		SELECT guild_id, role FROM party_guilds WHERE party_id = ?
	`, party.ID.String())
	if err != nil {
		return fmt.Errorf("load party guilds: %w", err)
	}
	defer rows.Close()

	party.MemberIDs = nil
	party.InviteIDs = nil
	for rows.Next() {
		var guildStr, role string
		if err := rows.Scan(&guildStr, &role); err != nil {
			return fmt.Errorf("scan party guild: %w", err)
		}
		id := uuid.MustParse(guildStr)
		if role == roleMember {
			party.MemberIDs = append(party.MemberIDs, id)
		} else {
			party.InviteIDs = append(party.InviteIDs, id)
		}
	}
	return rows.Err()
}

func scanParty(row rowScanner) (domain.Party, error) {
	var (
		idStr, name, leaderStr, statusStr, createdStr string
		expiresStr                                    sql.NullString
	)
	err := row.Scan(&idStr, &name, &leaderStr, &statusStr, &createdStr, &expiresStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Party{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Party{}, fmt.Errorf("scan party: %w", err)
	}
	return domain.Party{
		ID:        uuid.MustParse(idStr),
		Name:      name,
		LeaderID:  uuid.MustParse(leaderStr),
		Status:    domain.PartyStatus(statusStr),
		CreatedAt: decodeTime(createdStr),
		ExpiresAt: decodeNullableTime(expiresStr),
	}, nil
}
