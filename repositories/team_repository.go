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
	ErrTeamNotFound           = errors.New("team not found")
	ErrTeamNameConflict       = errors.New("team name conflict within competition")
	ErrTeamInvalidCompetition = errors.New("invalid competition reference")
	ErrTeamInvalidCaptain     = errors.New("invalid captain reference")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]models.Team, error)
	ListIDsByCompetition(ctx context.Context, exec SQLExecutor, competitionID int) ([]int, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateCaptain(ctx context.Context, exec SQLExecutor, teamID int, captainID *int) error
	ClearCaptainForPlayer(ctx context.Context, exec SQLExecutor, competitionID, playerID int) error
	Delete(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	query := `
		INSERT INTO teams (competition_id, name, captain_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.CompetitionID, t.Name, t.CaptainID,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT id, competition_id, name, captain_id, created_at FROM teams WHERE id = $1`

	var t models.Team
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.CompetitionID, &t.Name, &t.CaptainID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team by id %d: %w", id, err)
	}
	return &t, nil
}

func (r *postgresTeamRepository) ListByCompetition(ctx context.Context, competitionID int) ([]models.Team, error) {
	query := `
		SELECT id, competition_id, name, captain_id, created_at
		FROM teams WHERE competition_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for competition %d: %w", competitionID, err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.CompetitionID, &t.Name, &t.CaptainID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ListIDsByCompetition возвращает id команд соревнования. Принимает SQLExecutor,
// чтобы набор команд разрешался внутри той же транзакции, что и каскадное
// удаление, и не гонялся с параллельным созданием/удалением команд.
func (r *postgresTeamRepository) ListIDsByCompetition(ctx context.Context, exec SQLExecutor, competitionID int) ([]int, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT id FROM teams WHERE competition_id = $1 ORDER BY id`, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team ids for competition %d: %w", competitionID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = $1 WHERE id = $2`, t.Name, t.ID)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateCaptain(ctx context.Context, exec SQLExecutor, teamID int, captainID *int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE teams SET captain_id = $1 WHERE id = $2`, captainID, teamID)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

// ClearCaptainForPlayer снимает игрока с капитанства во всех командах
// соревнования. Ноль затронутых строк не считается ошибкой: игрок мог не быть капитаном.
func (r *postgresTeamRepository) ClearCaptainForPlayer(ctx context.Context, exec SQLExecutor, competitionID, playerID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`UPDATE teams SET captain_id = NULL WHERE competition_id = $1 AND captain_id = $2`,
		competitionID, playerID)
	if err != nil {
		return fmt.Errorf("failed to clear captaincy for player %d: %w", playerID, err)
	}
	return nil
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "teams_competition_id_name_key" {
				return ErrTeamNameConflict
			}
		case "23503":
			switch pqErr.Constraint {
			case "teams_competition_id_fkey":
				return ErrTeamInvalidCompetition
			case "teams_captain_id_fkey":
				return ErrTeamInvalidCaptain
			}
		}
	}
	return err
}
