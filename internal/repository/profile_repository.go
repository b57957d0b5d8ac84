package repository

import (
	"context"

	"parley/internal/domain/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) ProfileRepository {
	return &PostgresProfileRepository{db: db}
}

func (r *PostgresProfileRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, username, full_name, avatar_url
        FROM profiles
        WHERE id = ANY($1)
    `, ids)
	if err != nil {
		return nil, mapError("get profiles", err)
	}
	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.Profile, error) {
		var p user.Profile
		err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL)
		return p, err
	})
	if err != nil {
		return nil, mapError("scan profiles", err)
	}
	return profiles, nil
}
