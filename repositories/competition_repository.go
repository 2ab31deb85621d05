package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/lib/pq"
)

var (
	ErrCompetitionNotFound     = errors.New("competition not found")
	ErrCompetitionNameConflict = errors.New("competition name conflict for this year")
	ErrCompetitionInUse        = errors.New("competition is in use (phases/teams/registrations exist)")
)

type CompetitionRepository interface {
	Create(ctx context.Context, competition *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	List(ctx context.Context, limit, offset int) ([]models.Competition, error)
	Update(ctx context.Context, competition *models.Competition) error
	UpdateStatus(ctx context.Context, id int, status models.CompetitionStatus) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresCompetitionRepository struct {
	db *sql.DB
}

func NewPostgresCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &postgresCompetitionRepository{db: db}
}

func (r *postgresCompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	query := `
		INSERT INTO competitions (name, year, status, start_date, end_date, logo_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		c.Name, c.Year, c.Status, c.StartDate, c.EndDate, c.LogoKey,
	).Scan(&c.ID, &c.CreatedAt)

	return r.handleCompetitionError(err)
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	query := `
		SELECT id, name, year, status, start_date, end_date, created_at, logo_key
		FROM competitions WHERE id = $1`

	var c models.Competition
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Year, &c.Status, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.LogoKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition by id %d: %w", id, err)
	}
	return &c, nil
}

func (r *postgresCompetitionRepository) List(ctx context.Context, limit, offset int) ([]models.Competition, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, name, year, status, start_date, end_date, created_at, logo_key
		FROM competitions
		ORDER BY year DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	defer rows.Close()

	var competitions []models.Competition
	for rows.Next() {
		var c models.Competition
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Year, &c.Status, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.LogoKey,
		); err != nil {
			return nil, fmt.Errorf("failed to scan competition row: %w", err)
		}
		competitions = append(competitions, c)
	}
	return competitions, rows.Err()
}

func (r *postgresCompetitionRepository) Update(ctx context.Context, c *models.Competition) error {
	query := `
		UPDATE competitions
		SET name = $1, year = $2, status = $3, start_date = $4, end_date = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.Year, c.Status, c.StartDate, c.EndDate, c.ID,
	)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) UpdateStatus(ctx context.Context, id int, status models.CompetitionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE competitions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update competition %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE competitions SET logo_key = $1 WHERE id = $2`, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update competition %d logo key: %w", id, err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM competitions WHERE id = $1`, id)
	if err != nil {
		return r.handleCompetitionError(err)
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}

func (r *postgresCompetitionRepository) handleCompetitionError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "competitions_name_year_key" {
				return ErrCompetitionNameConflict
			}
		case "23503":
			// FK из фаз/команд/регистраций, указывающий на соревнование.
			return ErrCompetitionInUse
		}
	}
	return err
}
