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
	ErrCaptainVoteNotFound    = errors.New("captain vote not found")
	ErrCaptainVoteInvalidRefs = errors.New("invalid voter/captain/team/phase reference")
)

type CaptainVoteRepository interface {
	// Upsert создаёт голос или заменяет выбор капитана для (voter_id, phase_id, team_id).
	Upsert(ctx context.Context, vote *models.CaptainVote) error
	ListByTeam(ctx context.Context, teamID int) ([]models.CaptainVote, error)
	DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error
	DeleteByVoterInTeams(ctx context.Context, exec SQLExecutor, voterID int, teamIDs []int) error
	DeleteByCaptainInTeams(ctx context.Context, exec SQLExecutor, captainID int, teamIDs []int) error
}

type postgresCaptainVoteRepository struct {
	db *sql.DB
}

func NewPostgresCaptainVoteRepository(db *sql.DB) CaptainVoteRepository {
	return &postgresCaptainVoteRepository{db: db}
}

func (r *postgresCaptainVoteRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCaptainVoteRepository) Upsert(ctx context.Context, v *models.CaptainVote) error {
	query := `
		INSERT INTO captain_votes (voter_id, captain_id, team_id, competition_id, phase_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (voter_id, phase_id, team_id)
		DO UPDATE SET captain_id = EXCLUDED.captain_id, updated_at = now()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		v.VoterID, v.CaptainID, v.TeamID, v.CompetitionID, v.PhaseID,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)

	return r.handleVoteError(err)
}

func (r *postgresCaptainVoteRepository) ListByTeam(ctx context.Context, teamID int) ([]models.CaptainVote, error) {
	query := `
		SELECT id, voter_id, captain_id, team_id, competition_id, phase_id, created_at, updated_at
		FROM captain_votes WHERE team_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list captain votes for team %d: %w", teamID, err)
	}
	defer rows.Close()

	var votes []models.CaptainVote
	for rows.Next() {
		var v models.CaptainVote
		if err := rows.Scan(
			&v.ID, &v.VoterID, &v.CaptainID, &v.TeamID, &v.CompetitionID, &v.PhaseID,
			&v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan captain vote row: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (r *postgresCaptainVoteRepository) DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM captain_votes WHERE team_id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete captain votes for team %d: %w", teamID, err)
	}
	return nil
}

func (r *postgresCaptainVoteRepository) DeleteByVoterInTeams(ctx context.Context, exec SQLExecutor, voterID int, teamIDs []int) error {
	if len(teamIDs) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM captain_votes WHERE voter_id = $1 AND team_id = ANY($2)`,
		voterID, pq.Array(teamIDs))
	if err != nil {
		return fmt.Errorf("failed to delete votes cast by player %d: %w", voterID, err)
	}
	return nil
}

func (r *postgresCaptainVoteRepository) DeleteByCaptainInTeams(ctx context.Context, exec SQLExecutor, captainID int, teamIDs []int) error {
	if len(teamIDs) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM captain_votes WHERE captain_id = $1 AND team_id = ANY($2)`,
		captainID, pq.Array(teamIDs))
	if err != nil {
		return fmt.Errorf("failed to delete votes for candidate %d: %w", captainID, err)
	}
	return nil
}

func (r *postgresCaptainVoteRepository) handleVoteError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" {
			return ErrCaptainVoteInvalidRefs
		}
	}
	return err
}
