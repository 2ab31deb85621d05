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
	ErrSelfScoreNotFound    = errors.New("player self score not found")
	ErrSelfScoreInvalidRefs = errors.New("invalid user/competition/phase reference")
	ErrSelfScoreKeyConflict = errors.New("self score already exists for this user and phase")
)

type SelfScoreRepository interface {
	// Upsert создаёт запись или перезаписывает scores для (user_id, phase_id).
	Upsert(ctx context.Context, score *models.PlayerSelfScore) error
	ListByUserAndCompetition(ctx context.Context, userID, competitionID int) ([]models.PlayerSelfScore, error)
	DeleteByUserAndCompetition(ctx context.Context, exec SQLExecutor, userID, competitionID int) error
}

type postgresSelfScoreRepository struct {
	db *sql.DB
}

func NewPostgresSelfScoreRepository(db *sql.DB) SelfScoreRepository {
	return &postgresSelfScoreRepository{db: db}
}

func (r *postgresSelfScoreRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSelfScoreRepository) Upsert(ctx context.Context, s *models.PlayerSelfScore) error {
	scoresJSON, err := json.Marshal(s.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal self score card: %w", err)
	}

	query := `
		INSERT INTO player_self_scores (user_id, competition_id, phase_id, scores)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, phase_id)
		DO UPDATE SET scores = EXCLUDED.scores, updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		s.UserID, s.CompetitionID, s.PhaseID, scoresJSON,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	return r.handleSelfScoreError(err)
}

func (r *postgresSelfScoreRepository) ListByUserAndCompetition(ctx context.Context, userID, competitionID int) ([]models.PlayerSelfScore, error) {
	query := `
		SELECT id, user_id, competition_id, phase_id, scores, created_at, updated_at
		FROM player_self_scores
		WHERE user_id = $1 AND competition_id = $2
		ORDER BY phase_id`

	rows, err := r.db.QueryContext(ctx, query, userID, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list self scores for user %d: %w", userID, err)
	}
	defer rows.Close()

	var scores []models.PlayerSelfScore
	for rows.Next() {
		var s models.PlayerSelfScore
		var scoresJSON []byte
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.CompetitionID, &s.PhaseID, &scoresJSON, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan self score row: %w", err)
		}
		if err := json.Unmarshal(scoresJSON, &s.Scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal self score card: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// DeleteByUserAndCompetition удаляет все самооценки игрока в соревновании.
// Ноль строк не считается ошибкой: игрок мог ничего не отправлять.
func (r *postgresSelfScoreRepository) DeleteByUserAndCompetition(ctx context.Context, exec SQLExecutor, userID, competitionID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM player_self_scores WHERE user_id = $1 AND competition_id = $2`,
		userID, competitionID)
	if err != nil {
		return fmt.Errorf("failed to delete self scores for user %d: %w", userID, err)
	}
	return nil
}

func (r *postgresSelfScoreRepository) handleSelfScoreError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrSelfScoreKeyConflict
		case "23503":
			return ErrSelfScoreInvalidRefs
		}
	}
	return err
}
