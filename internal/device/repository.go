package device

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/strefethen/volumio-hub-go/internal/db"
	"github.com/strefethen/volumio-hub-go/internal/state"
)

// Repository persists attribute values and the device identity so a restart
// still de-duplicates against the last known state.
type Repository struct {
	pair *db.DBPair
}

func NewRepository(pair *db.DBPair) *Repository {
	return &Repository{pair: pair}
}

// LoadAttributes returns all persisted attribute values.
func (r *Repository) LoadAttributes() (state.Attributes, error) {
	rows, err := r.pair.Reader().Query(`SELECT name, value FROM attributes`)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(state.Attributes)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs[name] = value
	}
	return attrs, rows.Err()
}

// SaveAttribute upserts one attribute value.
func (r *Repository) SaveAttribute(name, value string) error {
	_, err := r.pair.Writer().Exec(`
		INSERT INTO attributes (name, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, value)
	if err != nil {
		return fmt.Errorf("save attribute %s: %w", name, err)
	}
	return nil
}

// LoadIdentity returns the persisted device identity, or "" when none is
// stored yet.
func (r *Repository) LoadIdentity() (string, error) {
	var identity string
	err := r.pair.Reader().QueryRow(`SELECT network_id FROM device_identity WHERE id = 1`).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load identity: %w", err)
	}
	return identity, nil
}

// SaveIdentity upserts the device identity row.
func (r *Repository) SaveIdentity(identity string) error {
	_, err := r.pair.Writer().Exec(`
		INSERT INTO device_identity (id, network_id, updated_at)
		VALUES (1, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET network_id = excluded.network_id, updated_at = excluded.updated_at
	`, identity)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}
