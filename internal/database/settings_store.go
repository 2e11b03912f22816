package database

import (
	"context"
	"fmt"

	"github.com/nao1215/quietfeed/internal/settings"
)

// SettingsStore implements settings.Store on the enabled_features table.
type SettingsStore struct {
	db *DB
}

var _ settings.Store = (*SettingsStore)(nil)

// NewSettingsStore returns a settings store backed by d.
func NewSettingsStore(d *DB) *SettingsStore {
	return &SettingsStore{db: d}
}

// Load reads every enabled feature, preserving the stored order per site.
// It returns settings.ErrNotSaved when no selection has been saved. A
// database written before the settings_saved table existed counts as saved
// as long as it has rows.
func (s *SettingsStore) Load(ctx context.Context) (settings.Selection, error) {
	var marked int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings_saved`).Scan(&marked); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	query := `
	SELECT site, feature FROM enabled_features
	ORDER BY site, position
	`

	rows, err := s.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	sel := settings.Selection{}
	for rows.Next() {
		var site, feature string
		if err := rows.Scan(&site, &feature); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		sel[site] = append(sel[site], feature)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if marked == 0 && len(sel) == 0 {
		return nil, settings.ErrNotSaved
	}
	return sel, nil
}

// Save replaces the stored selection in a single transaction.
func (s *SettingsStore) Save(ctx context.Context, sel settings.Selection) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM enabled_features`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO enabled_features (site, feature, position)
	VALUES (?, ?, ?)
	ON CONFLICT(site, feature) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for site, features := range sel {
		for i, feature := range features {
			if _, err := stmt.ExecContext(ctx, site, feature, i); err != nil {
				return fmt.Errorf("failed to save %s/%s: %w", site, feature, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO settings_saved (id, saved_at) VALUES (1, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at
	`); err != nil {
		return fmt.Errorf("failed to mark settings saved: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}
