package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// sqlStore holds the queries shared by the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound for Postgres.
type sqlStore struct {
	db       *sql.DB
	logger   *slog.Logger
	numbered bool
}

// rebind rewrites ? placeholders to $1, $2, ... when the driver needs it.
func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCompletion reports whether address completed the quest
func (s *sqlStore) GetCompletion(ctx context.Context, questID, address string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM quest_completions WHERE quest_id = ? AND address = ?`,
		questID, normalizeAddress(address))
}

// SetCompletion records a quest completion without crediting XP
func (s *sqlStore) SetCompletion(ctx context.Context, questID, address string) error {
	if err := checkKey(questID, address); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO quest_completions (quest_id, address) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`), questID, normalizeAddress(address))
	return err
}

// GetStepCompletion reports whether address completed the step
func (s *sqlStore) GetStepCompletion(ctx context.Context, questID string, step int, address string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM step_completions WHERE quest_id = ? AND step_index = ? AND address = ?`,
		questID, step, normalizeAddress(address))
}

// SetStepCompletion records a step completion without crediting XP
func (s *sqlStore) SetStepCompletion(ctx context.Context, questID string, step int, address string) error {
	if err := checkStep(questID, step, address); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO step_completions (quest_id, step_index, address) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`), questID, step, normalizeAddress(address))
	return err
}

// GetUserCompletions lists the quests address completed
func (s *sqlStore) GetUserCompletions(ctx context.Context, address string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT quest_id FROM quest_completions WHERE address = ? ORDER BY quest_id
	`), normalizeAddress(address))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetUserStepCompletions lists the completed step indices of one quest
func (s *sqlStore) GetUserStepCompletions(ctx context.Context, questID, address string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT step_index FROM step_completions WHERE quest_id = ? AND address = ? ORDER BY step_index
	`), questID, normalizeAddress(address))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := []int{}
	for rows.Next() {
		var step int
		if err := rows.Scan(&step); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// GetAllUserStepCompletions groups every completed step of address by quest
func (s *sqlStore) GetAllUserStepCompletions(ctx context.Context, address string) (map[string][]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT quest_id, step_index FROM step_completions WHERE address = ? ORDER BY quest_id, step_index
	`), normalizeAddress(address))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]int)
	for rows.Next() {
		var questID string
		var step int
		if err := rows.Scan(&questID, &step); err != nil {
			return nil, err
		}
		out[questID] = append(out[questID], step)
	}
	return out, rows.Err()
}

// CompleteQuest records a quest completion and credits xp once
func (s *sqlStore) CompleteQuest(ctx context.Context, questID, address string, xp int64) (bool, error) {
	if err := checkKey(questID, address); err != nil {
		return false, err
	}
	addr := normalizeAddress(address)
	return s.completeOnce(ctx, addr, xp, "quest:"+questID, `
		INSERT INTO quest_completions (quest_id, address) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, questID, addr)
}

// CompleteStep records a step completion and credits xp once
func (s *sqlStore) CompleteStep(ctx context.Context, questID string, step int, address string, xp int64) (bool, error) {
	if err := checkStep(questID, step, address); err != nil {
		return false, err
	}
	addr := normalizeAddress(address)
	return s.completeOnce(ctx, addr, xp, fmt.Sprintf("step:%s:%d", questID, step), `
		INSERT INTO step_completions (quest_id, step_index, address) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, questID, step, addr)
}

func (s *sqlStore) completeOnce(ctx context.Context, addr string, xp int64, reason, insert string, args ...any) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(insert), args...)
	if err != nil {
		return false, fmt.Errorf("recording completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if xp != 0 {
		if err := s.creditXP(ctx, tx, addr, xp, reason); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing completion: %w", err)
	}
	return true, nil
}

func (s *sqlStore) creditXP(ctx context.Context, tx *sql.Tx, addr string, amount int64, reason string) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO xp_balances (address, xp) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET xp = xp_balances.xp + excluded.xp, updated_at = CURRENT_TIMESTAMP
	`), addr, amount)
	if err != nil {
		return fmt.Errorf("updating xp balance: %w", err)
	}
	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO xp_events (id, address, amount, reason) VALUES (?, ?, ?, ?)
	`), generateID(), addr, amount, reason)
	if err != nil {
		return fmt.Errorf("recording xp event: %w", err)
	}
	return nil
}

// AddXP credits amount to address
func (s *sqlStore) AddXP(ctx context.Context, address string, amount int64) error {
	if address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if amount == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.creditXP(ctx, tx, normalizeAddress(address), amount, "manual"); err != nil {
		return err
	}
	return tx.Commit()
}

// GetUserXP returns the XP balance of address, zero when unknown
func (s *sqlStore) GetUserXP(ctx context.Context, address string) (int64, error) {
	var xp int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT xp FROM xp_balances WHERE address = ?`),
		normalizeAddress(address)).Scan(&xp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return xp, err
}

// Leaderboard returns the top addresses by XP, ties broken by address
func (s *sqlStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT b.address, b.xp,
			(SELECT COUNT(*) FROM quest_completions c WHERE c.address = b.address)
		FROM xp_balances b
		WHERE b.xp > 0
		ORDER BY b.xp DESC, b.address ASC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Address, &e.XP, &e.Completions); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
