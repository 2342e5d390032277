package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/guildforge/guildhall/internal/domain"
)

// ─── Vault Store ────────────────────────────────────────────────────────────
// The balance mutation and the log append happen inside one SQL transaction,
// so a crash can never leave a balance without its log row or vice versa.

// GetAccount returns the guild's account, creating a zero-balance account on
// first access.
func (db *DB) GetAccount(guildID uuid.UUID) (domain.VaultAccount, error) {
	_, err := db.db.Exec(`
		INSERT OR IGNORE INTO vault_accounts (guild_id, balance, version) VALUES (?, 0, 0)
	`, guildID.String())
	if err != nil {
		return domain.VaultAccount{}, fmt.Errorf("create account: %w", err)
	}
	var acct domain.VaultAccount
	acct.GuildID = guildID
	err = db.db.QueryRow(`
		SELECT balance, version FROM vault_accounts WHERE guild_id = ?
	`, guildID.String()).Scan(&acct.Balance, &acct.Version)
	if err != nil {
		return domain.VaultAccount{}, fmt.Errorf("read account: %w", err)
	}
	return acct, nil
}

// ApplyTransaction atomically adjusts the balance by delta, bumps the
// version, and appends the log row with BalanceAfter filled in. Returns the
// new balance. A withdrawal exceeding the balance fails with
// ErrInsufficientFunds and writes nothing.
func (db *DB) ApplyTransaction(guildID uuid.UUID, delta int64, entry domain.VaultTransaction) (int64, error) {
	sqlTx, err := db.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin vault tx: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.Exec(`
		INSERT OR IGNORE INTO vault_accounts (guild_id, balance, version) VALUES (?, 0, 0)
	`, guildID.String()); err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}

	var balance int64
	if err := sqlTx.QueryRow(`
		SELECT balance FROM vault_accounts WHERE guild_id = ?
	`, guildID.String()).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if delta < 0 && balance < -delta {
		return 0, domain.ErrInsufficientFunds
	}
	if delta > 0 && balance > math.MaxInt64-delta {
		return 0, domain.ErrInvalidAmount
	}
	newBalance := balance + delta

	if _, err := sqlTx.Exec(`
		UPDATE vault_accounts SET balance = ?, version = version + 1 WHERE guild_id = ?
	`, newBalance, guildID.String()); err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	entry.GuildID = guildID
	entry.BalanceAfter = newBalance
	if _, err := sqlTx.Exec(`
		INSERT INTO vault_transactions (id, guild_id, actor_id, kind, amount, balance_after, description, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID.String(), guildID.String(), encodeNullableUUID(entry.ActorID),
		string(entry.Kind), entry.Amount, newBalance, entry.Description,
		encodeTime(entry.Timestamp)); err != nil {
		return 0, fmt.Errorf("append vault log: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit vault tx: %w", err)
	}
	return newBalance, nil
}

// Transactions returns the guild's log entries, newest first. A limit of
// zero or less returns the full log.
func (db *DB) Transactions(guildID uuid.UUID, limit int) ([]domain.VaultTransaction, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := db.db.Query(`
		SELECT id, guild_id, actor_id, kind, amount, balance_after, description, timestamp
		FROM vault_transactions
		WHERE guild_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, guildID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query vault log: %w", err)
	}
	defer rows.Close()

	var result []domain.VaultTransaction
	for rows.Next() {
		entry, err := scanVaultTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Contributions aggregates the log per actor. System entries (NULL actor)
// are excluded.
func (db *DB) Contributions(guildID uuid.UUID) ([]domain.MemberContribution, error) {
	rows, err := db.db.Query(`
		SELECT actor_id,
		       COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0),
		       COUNT(*)
		FROM vault_transactions
		WHERE guild_id = ? AND actor_id IS NOT NULL
		GROUP BY actor_id
		ORDER BY actor_id
	`, string(domain.TxDeposit), string(domain.TxWithdraw), guildID.String())
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var result []domain.MemberContribution
	for rows.Next() {
		var (
			actorStr string
			contrib  domain.MemberContribution
		)
		if err := rows.Scan(&actorStr, &contrib.TotalDeposits, &contrib.TotalWithdrawals, &contrib.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		contrib.ActorID = uuid.MustParse(actorStr)
		result = append(result, contrib)
	}
	return result, rows.Err()
}

// SumTransactions recomputes the balance from the log, for reconciliation
// against the account row.
func (db *DB) SumTransactions(guildID uuid.UUID) (int64, error) {
	var sum int64
	err := db.db.QueryRow(`
		SELECT SUM(CASE WHEN kind = ? THEN amount ELSE -amount END)
		FROM vault_transactions
		WHERE guild_id = ?
	`, string(domain.TxDeposit), guildID.String()).Scan(&nullableInt{&sum})
	if err != nil {
		return 0, fmt.Errorf("sum vault log: %w", err)
	}
	return sum, nil
}

// DeleteAccount removes the guild's account and its entire log. Part of the
// guild-deletion cascade.
func (db *DB) DeleteAccount(guildID uuid.UUID) error {
	sqlTx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete account: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.Exec(`DELETE FROM vault_transactions WHERE guild_id = ?`, guildID.String()); err != nil {
		return fmt.Errorf("delete vault log: %w", err)
	}
	if _, err := sqlTx.Exec(`DELETE FROM vault_accounts WHERE guild_id = ?`, guildID.String()); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return sqlTx.Commit()
}

// Flush checkpoints the WAL so committed mutations reach the main database
// file before returning.
func (db *DB) Flush() error {
	if _, err := db.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

func scanVaultTransaction(row rowScanner) (domain.VaultTransaction, error) {
	var (
		idStr, guildStr, kindStr, tsStr string
		actorStr                        sql.NullString
		entry                           domain.VaultTransaction
	)
	err := row.Scan(&idStr, &guildStr, &actorStr, &kindStr,
		&entry.Amount, &entry.BalanceAfter, &entry.Description, &tsStr)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VaultTransaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.VaultTransaction{}, fmt.Errorf("scan vault transaction: %w", err)
	}
	entry.ID = uuid.MustParse(idStr)
	entry.GuildID = uuid.MustParse(guildStr)
	entry.ActorID = decodeNullableUUID(actorStr)
	entry.Kind = domain.TransactionKind(kindStr)
	entry.Timestamp = decodeTime(tsStr)
	return entry, nil
}
