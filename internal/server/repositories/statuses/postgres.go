package statuses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, status *models.UserStatus) (*models.UserStatus, error) {
	query := `
		INSERT INTO user_session_statuses (user_id, actual_at, params)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, status.UserID, status.ActualAt, []byte(status.Params)).Scan(&status.ID)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return status, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, userID string) (*models.UserStatus, error) {
	query := `
		SELECT id, user_id, actual_at, params
		FROM user_session_statuses
		WHERE user_id = $1
		ORDER BY actual_at DESC, id DESC
		LIMIT 1
	`

	var (
		status models.UserStatus
		params []byte
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&status.ID, &status.UserID, &status.ActualAt, &params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	status.Params = params
	return &status, nil
}
