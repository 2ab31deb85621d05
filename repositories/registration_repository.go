package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/lib/pq"
)

var (
	ErrRegistrationNotFound    = errors.New("competition registration not found")
	ErrRegistrationConflict    = errors.New("user is already registered for this competition")
	ErrRegistrationInvalidRefs = errors.New("invalid user/competition reference")
)

type RegistrationRepository interface {
	Create(ctx context.Context, registration *models.UserCompetition) error
	GetByUserAndCompetition(ctx context.Context, userID, competitionID int) (*models.UserCompetition, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]models.UserCompetition, error)
	UpdateStatus(ctx context.Context, userID, competitionID int, status models.RegistrationStatus) error
	UpdateProficiency(ctx context.Context, userID, competitionID, score int, proficiencies map[string]float64) error
	Delete(ctx context.Context, exec SQLExecutor, userID, competitionID int) error
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.UserCompetition) error {
	query := `
		INSERT INTO user_competitions (user_id, competition_id, status, proficiency_score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		reg.UserID, reg.CompetitionID, reg.Status, reg.ProficiencyScore,
	).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)

	return r.handleRegistrationError(err)
}

func (r *postgresRegistrationRepository) GetByUserAndCompetition(ctx context.Context, userID, competitionID int) (*models.UserCompetition, error) {
	query := `
		SELECT id, user_id, competition_id, status, proficiency_score, proficiencies, created_at, updated_at
		FROM user_competitions
		WHERE user_id = $1 AND competition_id = $2`

	var reg models.UserCompetition
	var proficienciesJSON []byte
	err := r.db.QueryRowContext(ctx, query, userID, competitionID).Scan(
		&reg.ID, &reg.UserID, &reg.CompetitionID, &reg.Status,
		&reg.ProficiencyScore, &proficienciesJSON, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration for user %d: %w", userID, err)
	}
	if len(proficienciesJSON) > 0 {
		if err := json.Unmarshal(proficienciesJSON, &reg.Proficiencies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proficiencies: %w", err)
		}
	}
	return &reg, nil
}

func (r *postgresRegistrationRepository) ListByCompetition(ctx context.Context, competitionID int) ([]models.UserCompetition, error) {
	query := `
		SELECT id, user_id, competition_id, status, proficiency_score, proficiencies, created_at, updated_at
		FROM user_competitions
		WHERE competition_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations for competition %d: %w", competitionID, err)
	}
	defer rows.Close()

	var regs []models.UserCompetition
	for rows.Next() {
		var reg models.UserCompetition
		var proficienciesJSON []byte
		if err := rows.Scan(
			&reg.ID, &reg.UserID, &reg.CompetitionID, &reg.Status,
			&reg.ProficiencyScore, &proficienciesJSON, &reg.CreatedAt, &reg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		if len(proficienciesJSON) > 0 {
			if err := json.Unmarshal(proficienciesJSON, &reg.Proficiencies); err != nil {
				return nil, fmt.Errorf("failed to unmarshal proficiencies: %w", err)
			}
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, userID, competitionID int, status models.RegistrationStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_competitions SET status = $1, updated_at = now() WHERE user_id = $2 AND competition_id = $3`,
		status, userID, competitionID)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

// UpdateProficiency записывает закоммиченный синтезированный балл в кэш регистрации.
func (r *postgresRegistrationRepository) UpdateProficiency(ctx context.Context, userID, competitionID, score int, proficiencies map[string]float64) error {
	proficienciesJSON, err := json.Marshal(proficiencies)
	if err != nil {
		return fmt.Errorf("failed to marshal proficiencies: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE user_competitions SET proficiency_score = $1, proficiencies = $2, updated_at = now()
		 WHERE user_id = $3 AND competition_id = $4`,
		score, proficienciesJSON, userID, competitionID)
	if err != nil {
		return fmt.Errorf("failed to update proficiency score: %w", err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, exec SQLExecutor, userID, competitionID int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`DELETE FROM user_competitions WHERE user_id = $1 AND competition_id = $2`,
		userID, competitionID)
	if err != nil {
		return fmt.Errorf("failed to delete registration for user %d: %w", userID, err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) handleRegistrationError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "user_competitions_user_id_competition_id_key" {
				return ErrRegistrationConflict
			}
		case "23503":
			return ErrRegistrationInvalidRefs
		}
	}
	return err
}
