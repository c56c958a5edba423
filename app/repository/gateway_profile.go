package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-gateways/app/entity"
)

type GatewayProfileRepository struct {
	db DBTX
}

func NewGatewayProfileRepository(db DBTX) *GatewayProfileRepository {
	return &GatewayProfileRepository{db: db}
}

func (r *GatewayProfileRepository) FindByGateway(ctx context.Context, gateway string) (*entity.GatewayProfile, error) {
	query := `
		SELECT id, gateway, enabled, settings_json, created_at, updated_at
		FROM gateway_profiles
		WHERE gateway = ?
	`

	var profile entity.GatewayProfile
	var settingsJSON string
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(gateway))).Scan(
		&profile.ID,
		&profile.Gateway,
		&profile.Enabled,
		&settingsJSON,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if profile.Settings, err = parseProperties(settingsJSON); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *GatewayProfileRepository) Upsert(ctx context.Context, profile *entity.GatewayProfile) error {
	settingsJSON, err := serializeProperties(profile.Settings)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO gateway_profiles (gateway, enabled, settings_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE enabled = VALUES(enabled), settings_json = VALUES(settings_json), updated_at = VALUES(updated_at)
	`

	_, err = r.db.ExecContext(ctx, query,
		strings.ToLower(strings.TrimSpace(profile.Gateway)),
		profile.Enabled,
		settingsJSON,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	return err
}
