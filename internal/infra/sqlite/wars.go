package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

// ─── War Store ──────────────────────────────────────────────────────────────

// GetWar returns a war by id.
func (db *DB) GetWar(id uuid.UUID) (domain.War, error) {
	row := db.db.QueryRow(warSelect+` WHERE id = ?`, id.String())
	return scanWar(row)
}

// InsertWar stores a new war record.
func (db *DB) InsertWar(war domain.War) error {
	_, err := db.db.Exec(`
		INSERT INTO wars (id, declaring_guild, defending_guild, started_at, duration_seconds, ended_at, surrendered_by, peace_proposed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, war.ID.String(), war.DeclaringGuildID.String(), war.DefendingGuildID.String(),
		encodeTime(war.StartedAt), int64(war.Duration.Seconds()),
		encodeNullableTime(war.EndedAt), encodeNullableUUID(war.SurrenderedBy),
		encodeNullableUUID(war.PeaceProposedBy))
	if err != nil {
		return fmt.Errorf("insert war: %w", err)
	}
	return nil
}

// UpdateWar rewrites the mutable columns of an existing war.
func (db *DB) UpdateWar(war domain.War) error {
	res, err := db.db.Exec(`
		UPDATE wars SET ended_at = ?, surrendered_by = ?, peace_proposed_by = ? WHERE id = ?
	`, encodeNullableTime(war.EndedAt), encodeNullableUUID(war.SurrenderedBy),
		encodeNullableUUID(war.PeaceProposedBy), war.ID.String())
	if err != nil {
		return fmt.Errorf("update war: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ActiveWars returns unfinished wars involving the guild.
func (db *DB) ActiveWars(guildID uuid.UUID) ([]domain.War, error) {
	return db.queryWars(warSelect+`
		WHERE ended_at IS NULL AND (declaring_guild = ? OR defending_guild = ?)
	`, guildID.String(), guildID.String())
}

// ActiveWarBetween returns the unfinished war for the pair, or ErrNotFound.
func (db *DB) ActiveWarBetween(guildA, guildB uuid.UUID) (domain.War, error) {
	row := db.db.QueryRow(warSelect+`
		WHERE ended_at IS NULL
		  AND ((declaring_guild = ? AND defending_guild = ?) OR (declaring_guild = ? AND defending_guild = ?))
	`, guildA.String(), guildB.String(), guildB.String(), guildA.String())
	return scanWar(row)
}

// ExpiredWars returns unfinished wars whose duration elapsed by now.
// Duration comparison happens in Go; the row set of open wars is small.
func (db *DB) ExpiredWars(now time.Time) ([]domain.War, error) {
	open, err := db.queryWars(warSelect + ` WHERE ended_at IS NULL`)
	if err != nil {
		return nil, err
	}
	var expired []domain.War
	for _, w := range open {
		if w.Expired(now) {
			expired = append(expired, w)
		}
	}
	return expired, nil
}

// WarHistory returns ended wars involving the guild, newest first. A limit
// of zero or less returns everything.
func (db *DB) WarHistory(guildID uuid.UUID, limit int) ([]domain.War, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	return db.queryWars(warSelect+`
		WHERE ended_at IS NOT NULL AND (declaring_guild = ? OR defending_guild = ?)
		ORDER BY ended_at DESC LIMIT ?
	`, guildID.String(), guildID.String(), limit)
}

// WarRecord returns the guild's decided-war tally. Only surrendered wars
// are decided; expiry and negotiated peace count for neither side.
func (db *DB) WarRecord(guildID uuid.UUID) (wins, losses int64, err error) {
	g := guildID.String()
	err = db.db.QueryRow(`
		SELECT
			SUM(CASE WHEN surrendered_by IS NOT NULL AND surrendered_by != ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN surrendered_by = ? THEN 1 ELSE 0 END)
		FROM wars
		WHERE ended_at IS NOT NULL AND (declaring_guild = ? OR defending_guild = ?)
	`, g, g, g, g).Scan(&nullableInt{&wins}, &nullableInt{&losses})
	if err != nil {
		return 0, 0, fmt.Errorf("war record: %w", err)
	}
	return wins, losses, nil
}

// DeleteWarsFor removes every war involving the guild. Part of the
// guild-deletion cascade.
func (db *DB) DeleteWarsFor(guildID uuid.UUID) error {
	_, err := db.db.Exec(`DELETE FROM wars WHERE declaring_guild = ? OR defending_guild = ?`,
		guildID.String(), guildID.String())
	if err != nil {
		return fmt.Errorf("delete wars for guild: %w", err)
	}
	return nil
}

const warSelect = `
	SELECT id, declaring_guild, defending_guild, started_at, duration_seconds, ended_at, surrendered_by, peace_proposed_by
	FROM wars`

func (db *DB) queryWars(query string, args ...any) ([]domain.War, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wars: %w", err)
	}
	defer rows.Close()

	var result []domain.War
	for rows.Next() {
		war, err := scanWar(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, war)
	}
	return result, rows.Err()
}

func scanWar(row rowScanner) (domain.War, error) {
	var (
		idStr, decStr, defStr, startStr string
		durationSecs                    int64
		endStr, surrStr, peaceStr       sql.NullString
	)
	err := row.Scan(&idStr, &decStr, &defStr, &startStr, &durationSecs, &endStr, &surrStr, &peaceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.War{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.War{}, fmt.Errorf("scan war: %w", err)
	}
	return domain.War{
		ID:               uuid.MustParse(idStr),
		DeclaringGuildID: uuid.MustParse(decStr),
		DefendingGuildID: uuid.MustParse(defStr),
		StartedAt:        decodeTime(startStr),
		Duration:         time.Duration(durationSecs) * time.Second,
		EndedAt:          decodeNullableTime(endStr),
		SurrenderedBy:    decodeNullableUUID(surrStr),
		PeaceProposedBy:  decodeNullableUUID(peaceStr),
	}, nil
}

// ─── Nullable Helpers ───────────────────────────────────────────────────────

func encodeNullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}

func decodeNullableUUID(s sql.NullString) uuid.UUID {
	if !s.Valid {
		return uuid.Nil
	}
	return uuid.MustParse(s.String)
}

// nullableInt scans NULL (empty aggregate) as zero.
type nullableInt struct{ v *int64 }

func (n *nullableInt) Scan(src any) error {
	if src == nil {
		*n.v = 0
		return nil
	}
	switch x := src.(type) {
	case int64:
		*n.v = x
	case float64:
		*n.v = int64(x)
	default:
		return fmt.Errorf("unexpected aggregate type %T", src)
	}
	return nil
}
