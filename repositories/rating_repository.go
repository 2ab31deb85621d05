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
	ErrRatingNotFound    = errors.New("player rating not found")
	ErrRatingInvalidRefs = errors.New("invalid rater/rated/competition/phase reference")
)

type RatingRepository interface {
	// Upsert создаёт запись или перезаписывает scores для (rater_id, rated_id, phase_id).
	Upsert(ctx context.Context, rating *models.PlayerRating) error
	ListByRatedAndCompetition(ctx context.Context, ratedID, competitionID int) ([]models.PlayerRating, error)
	DeleteByRaterAndCompetition(ctx context.Context, exec SQLExecutor, raterID, competitionID int) error
	DeleteByRatedAndCompetition(ctx context.Context, exec SQLExecutor, ratedID, competitionID int) error
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRatingRepository) Upsert(ctx context.Context, rating *models.PlayerRating) error {
	scoresJSON, err := json.Marshal(rating.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal rating score card: %w", err)
	}

	query := `
		INSERT INTO player_ratings (rater_id, rated_id, competition_id, phase_id, scores)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rater_id, rated_id, phase_id)
		DO UPDATE SET scores = EXCLUDED.scores, updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		rating.RaterID, rating.RatedID, rating.CompetitionID, rating.PhaseID, scoresJSON,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)

	return r.handleRatingError(err)
}

// ListByRatedAndCompetition возвращает все полученные игроком оценки.
func (r *postgresRatingRepository) ListByRatedAndCompetition(ctx context.Context, ratedID, competitionID int) ([]models.PlayerRating, error) {
	query := `
		SELECT id, rater_id, rated_id, competition_id, phase_id, scores, created_at, updated_at
		FROM player_ratings
		WHERE rated_id = $1 AND competition_id = $2
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, ratedID, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings for player %d: %w", ratedID, err)
	}
	defer rows.Close()

	var ratings []models.PlayerRating
	for rows.Next() {
		var rt models.PlayerRating
		var scoresJSON []byte
		if err := rows.Scan(
			&rt.ID, &rt.RaterID, &rt.RatedID, &rt.CompetitionID, &rt.PhaseID,
			&scoresJSON, &rt.CreatedAt, &rt.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		if err := json.Unmarshal(scoresJSON, &rt.Scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rating score card: %w", err)
		}
		ratings = append(ratings, rt)
	}
	return ratings, rows.Err()
}

func (r *postgresRatingRepository) DeleteByRaterAndCompetition(ctx context.Context, exec SQLExecutor, raterID, competitionID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM player_ratings WHERE rater_id = $1 AND competition_id = $2`,
		raterID, competitionID)
	if err != nil {
		return fmt.Errorf("failed to delete ratings given by player %d: %w", raterID, err)
	}
	return nil
}

func (r *postgresRatingRepository) DeleteByRatedAndCompetition(ctx context.Context, exec SQLExecutor, ratedID, competitionID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM player_ratings WHERE rated_id = $1 AND competition_id = $2`,
		ratedID, competitionID)
	if err != nil {
		return fmt.Errorf("failed to delete ratings received by player %d: %w", ratedID, err)
	}
	return nil
}

func (r *postgresRatingRepository) handleRatingError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" {
			return ErrRatingInvalidRefs
		}
	}
	return err
}
