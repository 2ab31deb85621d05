package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/lib/pq"
)

var (
	ErrPhaseNotFound           = errors.New("competition phase not found")
	ErrPhaseOrderConflict      = errors.New("phase order conflict within competition")
	ErrPhaseInvalidCompetition = errors.New("invalid competition reference")
)

type PhaseRepository interface {
	Create(ctx context.Context, phase *models.CompetitionPhase) error
	GetByID(ctx context.Context, id int) (*models.CompetitionPhase, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]models.CompetitionPhase, error)
	Update(ctx context.Context, phase *models.CompetitionPhase) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PhaseStatus) error
	Delete(ctx context.Context, id int) error
	ListForStatusRefresh(ctx context.Context, currentTime time.Time) ([]models.CompetitionPhase, error)
}

type postgresPhaseRepository struct {
	db *sql.DB
}

func NewPostgresPhaseRepository(db *sql.DB) PhaseRepository {
	return &postgresPhaseRepository{db: db}
}

func (r *postgresPhaseRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const phaseColumns = `id, competition_id, name, description, type, position, start_date, end_date, status, created_at`

func scanPhase(row interface{ Scan(...interface{}) error }, p *models.CompetitionPhase) error {
	return row.Scan(
		&p.ID, &p.CompetitionID, &p.Name, &p.Description, &p.Type,
		&p.Order, &p.StartDate, &p.EndDate, &p.Status, &p.CreatedAt,
	)
}

func (r *postgresPhaseRepository) Create(ctx context.Context, p *models.CompetitionPhase) error {
	query := `
		INSERT INTO competition_phases (competition_id, name, description, type, position, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.CompetitionID, p.Name, p.Description, p.Type, p.Order, p.StartDate, p.EndDate, p.Status,
	).Scan(&p.ID, &p.CreatedAt)

	return r.handlePhaseError(err)
}

func (r *postgresPhaseRepository) GetByID(ctx context.Context, id int) (*models.CompetitionPhase, error) {
	query := `SELECT ` + phaseColumns + ` FROM competition_phases WHERE id = $1`

	var p models.CompetitionPhase
	err := scanPhase(r.db.QueryRowContext(ctx, query, id), &p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to get phase by id %d: %w", id, err)
	}
	return &p, nil
}

// ListByCompetition возвращает фазы в порядке их позиции в соревновании.
func (r *postgresPhaseRepository) ListByCompetition(ctx context.Context, competitionID int) ([]models.CompetitionPhase, error) {
	query := `SELECT ` + phaseColumns + ` FROM competition_phases WHERE competition_id = $1 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases for competition %d: %w", competitionID, err)
	}
	defer rows.Close()

	var phases []models.CompetitionPhase
	for rows.Next() {
		var p models.CompetitionPhase
		if err := scanPhase(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan phase row: %w", err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

func (r *postgresPhaseRepository) Update(ctx context.Context, p *models.CompetitionPhase) error {
	query := `
		UPDATE competition_phases
		SET name = $1, description = $2, type = $3, position = $4,
		    start_date = $5, end_date = $6, status = $7
		WHERE id = $8`

	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Type, p.Order, p.StartDate, p.EndDate, p.Status, p.ID,
	)
	if err != nil {
		return r.handlePhaseError(err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}

func (r *postgresPhaseRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PhaseStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE competition_phases SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update phase %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}

func (r *postgresPhaseRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM competition_phases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete phase %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}

// ListForStatusRefresh возвращает фазы, чей сохранённый статус разошёлся
// с датами: ожидающие, которые уже должны были начаться, и идущие,
// которые уже должны были закончиться.
func (r *postgresPhaseRepository) ListForStatusRefresh(ctx context.Context, currentTime time.Time) ([]models.CompetitionPhase, error) {
	query := `
		SELECT ` + phaseColumns + `
		FROM competition_phases
		WHERE (status = $1 AND start_date <= $3)
		   OR (status = $2 AND end_date < $3)`

	rows, err := r.db.QueryContext(ctx, query,
		models.PhasePending, models.PhaseInProgress, currentTime)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases for status refresh: %w", err)
	}
	defer rows.Close()

	var phases []models.CompetitionPhase
	for rows.Next() {
		var p models.CompetitionPhase
		if err := scanPhase(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan phase row: %w", err)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

func (r *postgresPhaseRepository) handlePhaseError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "competition_phases_competition_id_position_key" {
				return ErrPhaseOrderConflict
			}
		case "23503":
			if pqErr.Constraint == "competition_phases_competition_id_fkey" {
				return ErrPhaseInvalidCompetition
			}
		}
	}
	return err
}
