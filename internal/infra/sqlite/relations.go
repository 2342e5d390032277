package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

// ─── Relation Store ─────────────────────────────────────────────────────────
// The pair key is stored canonically ordered; see domain.OrderPair.

// GetRelation returns the relation for the unordered pair, or
// domain.ErrNotFound when the pair is NEUTRAL.
func (db *DB) GetRelation(guildA, guildB uuid.UUID) (domain.Relation, error) {
	a, b := domain.OrderPair(guildA, guildB)
	row := db.db.QueryRow(`
		SELECT id, guild_a, guild_b, type, status, initiator_id, actor_id, requested_at, established_at
		FROM relations WHERE guild_a = ? AND guild_b = ?
	`, a.String(), b.String())
	return scanRelation(row)
}

// InsertRelation stores a new relation record, normalizing the pair order.
func (db *DB) InsertRelation(rel domain.Relation) error {
	a, b := domain.OrderPair(rel.GuildA, rel.GuildB)
	_, err := db.db.Exec(`
		INSERT INTO relations (id, guild_a, guild_b, type, status, initiator_id, actor_id, requested_at, established_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rel.ID.String(), a.String(), b.String(), string(rel.Type), string(rel.Status),
		rel.InitiatorID.String(), rel.ActorID.String(),
		encodeTime(rel.RequestedAt), encodeNullableTime(rel.EstablishedAt))
	if err != nil {
		return fmt.Errorf("insert relation: %w", err)
	}
	return nil
}

// UpdateRelation rewrites the mutable columns of an existing relation.
func (db *DB) UpdateRelation(rel domain.Relation) error {
	res, err := db.db.Exec(`
		UPDATE relations SET type = ?, status = ?, established_at = ? WHERE id = ?
	`, string(rel.Type), string(rel.Status), encodeNullableTime(rel.EstablishedAt), rel.ID.String())
	if err != nil {
		return fmt.Errorf("update relation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteRelation removes a relation record, returning the pair to NEUTRAL.
func (db *DB) DeleteRelation(id uuid.UUID) error {
	res, err := db.db.Exec(`DELETE FROM relations WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete relation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RelationsFor returns every relation involving the guild.
func (db *DB) RelationsFor(guildID uuid.UUID) ([]domain.Relation, error) {
	return db.queryRelations(`
		SELECT id, guild_a, guild_b, type, status, initiator_id, actor_id, requested_at, established_at
		FROM relations WHERE guild_a = ? OR guild_b = ?
	`, guildID.String(), guildID.String())
}

// PendingFor returns pending requests involving the guild, both outgoing
// and incoming.
func (db *DB) PendingFor(guildID uuid.UUID) ([]domain.Relation, error) {
	return db.queryRelations(`
		SELECT id, guild_a, guild_b, type, status, initiator_id, actor_id, requested_at, established_at
		FROM relations WHERE status = ? AND (guild_a = ? OR guild_b = ?)
	`, string(domain.StatusPending), guildID.String(), guildID.String())
}

// DeleteRelationsFor removes every relation involving the guild. Part of
// the guild-deletion cascade.
func (db *DB) DeleteRelationsFor(guildID uuid.UUID) error {
	_, err := db.db.Exec(`DELETE FROM relations WHERE guild_a = ? OR guild_b = ?`,
		guildID.String(), guildID.String())
	if err != nil {
		return fmt.Errorf("delete relations for guild: %w", err)
	}
	return nil
}

func (db *DB) queryRelations(query string, args ...any) ([]domain.Relation, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var result []domain.Relation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rel)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelation(row rowScanner) (domain.Relation, error) {
	var (
		idStr, aStr, bStr, typeStr, statusStr, initStr, actorStr, reqStr string
		estStr                                                          sql.NullString
	)
	err := row.Scan(&idStr, &aStr, &bStr, &typeStr, &statusStr, &initStr, &actorStr, &reqStr, &estStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Relation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Relation{}, fmt.Errorf("scan relation: %w", err)
	}
	return domain.Relation{
		ID:            uuid.MustParse(idStr),
		GuildA:        uuid.MustParse(aStr),
		GuildB:        uuid.MustParse(bStr),
		Type:          domain.RelationType(typeStr),
		Status:        domain.RelationStatus(statusStr),
		InitiatorID:   uuid.MustParse(initStr),
		ActorID:       uuid.MustParse(actorStr),
		RequestedAt:   decodeTime(reqStr),
		EstablishedAt: decodeNullableTime(estStr),
	}, nil
}
