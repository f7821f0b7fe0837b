package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwulff/gridboard/internal/domain"
	"github.com/jwulff/gridboard/internal/storage"
)

// Integrations manages configured third-party service connections. Only
// their ids and types matter to the layout model.
type Integrations struct {
	base
}

const integrationColumns = `id, type, name, config, enabled, created_at, updated_at`

func scanIntegration(row rowScanner) (*domain.Integration, error) {
	var in domain.Integration
	var config string
	if err := row.Scan(&in.ID, &in.Type, &in.Name, &config, &in.Enabled, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(config)
	if err != nil {
		return nil, err
	}
	in.Config = cfg
	return &in, nil
}

func getIntegration(ctx context.Context, q storage.Querier, id string) (*domain.Integration, error) {
	in, err := scanIntegration(q.QueryRowContext(ctx,
		"SELECT "+integrationColumns+" FROM integrations WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "integration", ID: id}
	}
	return in, err
}

// List returns all integrations.
func (r *Integrations) List(ctx context.Context) ([]*domain.Integration, error) {
	integrations := []*domain.Integration{}
	err := r.db.View(ctx, func(q storage.Querier) error {
		rows, err := q.QueryContext(ctx,
			"SELECT "+integrationColumns+" FROM integrations ORDER BY created_at ASC, rowid ASC")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			in, err := scanIntegration(rows)
			if err != nil {
				return err
			}
			integrations = append(integrations, in)
		}
		return rows.Err()
	})
	return integrations, err
}

// Get returns one integration.
func (r *Integrations) Get(ctx context.Context, id string) (*domain.Integration, error) {
	var in *domain.Integration
	err := r.db.View(ctx, func(q storage.Querier) error {
		var err error
		in, err = getIntegration(ctx, q, id)
		return err
	})
	return in, err
}

// Create adds an integration. Enabled defaults to true.
func (r *Integrations) Create(ctx context.Context, input domain.IntegrationInput) (*domain.Integration, error) {
	typ := strings.TrimSpace(input.Type)
	if typ == "" {
		return nil, storage.Invalidf("integration type is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = typ
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}
	cfg, err := encodeConfig(input.Config)
	if err != nil {
		return nil, err
	}

	var in *domain.Integration
	err = r.db.Update(ctx, func(q storage.Querier) error {
		id := uuid.NewString()
		now := r.now()
		if _, err := q.ExecContext(ctx, `
			INSERT INTO integrations (id, type, name, config, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, typ, name, cfg, enabled, now, now); err != nil {
			return fmt.Errorf("failed to insert integration: %w", err)
		}

		var err error
		in, err = getIntegration(ctx, q, id)
		return err
	})
	return in, err
}

// Delete removes an integration. Widgets backed by it keep existing with no
// integration.
func (r *Integrations) Delete(ctx context.Context, id string) error {
	return r.db.Update(ctx, func(q storage.Querier) error {
		if err := requireIntegration(ctx, q, id); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, "DELETE FROM integrations WHERE id = ?", id)
		return err
	})
}

// TypeMap maps each integration type to the oldest integration of that type.
// It is the default mapping used when importing dashboards.
func (r *Integrations) TypeMap(ctx context.Context) (map[string]string, error) {
	types := make(map[string]string)
	err := r.db.View(ctx, func(q storage.Querier) error {
		records, err := queryRecords(ctx, q,
			"SELECT type, id FROM integrations ORDER BY created_at ASC, rowid ASC")
		if err != nil {
			return err
		}
		for _, rec := range records {
			if typ := rec.String("type"); types[typ] == "" {
				types[typ] = rec.String("id")
			}
		}
		return nil
	})
	return types, err
}
