package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Olzhas11/competition-platform/metrics"
	"github.com/Olzhas11/competition-platform/repositories"
)

// RemovalService выполняет согласованное удаление всего следа игрока в
// соревновании: регистрация, самооценки, выданные и полученные оценки,
// голоса и капитанства одной транзакцией, всё или ничего.
type RemovalService struct {
	txManager        repositories.TxManager
	registrationRepo repositories.RegistrationRepository
	selfScoreRepo    repositories.SelfScoreRepository
	ratingRepo       repositories.RatingRepository
	voteRepo         repositories.CaptainVoteRepository
	teamRepo         repositories.TeamRepository
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

func NewRemovalService(
	txManager repositories.TxManager,
	registrationRepo repositories.RegistrationRepository,
	selfScoreRepo repositories.SelfScoreRepository,
	ratingRepo repositories.RatingRepository,
	voteRepo repositories.CaptainVoteRepository,
	teamRepo repositories.TeamRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RemovalService {
	return &RemovalService{
		txManager:        txManager,
		registrationRepo: registrationRepo,
		selfScoreRepo:    selfScoreRepo,
		ratingRepo:       ratingRepo,
		voteRepo:         voteRepo,
		teamRepo:         teamRepo,
		metrics:          m,
		logger:           logger,
	}
}

// RemovePlayer удаляет след игрока в соревновании. Отсутствие регистрации даёт
// NotFound без каких-либо частичных удалений. Ошибка на любом шаге
// откатывает транзакцию целиком.
func (s *RemovalService) RemovePlayer(ctx context.Context, playerID, competitionID int) error {
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.registrationRepo.Delete(ctx, exec, playerID, competitionID); err != nil {
			if errors.Is(err, repositories.ErrRegistrationNotFound) {
				return ErrRegistrationNotFound
			}
			return err
		}

		if err := s.selfScoreRepo.DeleteByUserAndCompetition(ctx, exec, playerID, competitionID); err != nil {
			return err
		}
		if err := s.ratingRepo.DeleteByRaterAndCompetition(ctx, exec, playerID, competitionID); err != nil {
			return err
		}
		if err := s.ratingRepo.DeleteByRatedAndCompetition(ctx, exec, playerID, competitionID); err != nil {
			return err
		}

		// Набор команд разрешается один раз и внутри транзакции, чтобы не
		// гоняться с параллельным созданием/удалением команд.
		teamIDs, err := s.teamRepo.ListIDsByCompetition(ctx, exec, competitionID)
		if err != nil {
			return err
		}
		if err := s.voteRepo.DeleteByVoterInTeams(ctx, exec, playerID, teamIDs); err != nil {
			return err
		}
		if err := s.voteRepo.DeleteByCaptainInTeams(ctx, exec, playerID, teamIDs); err != nil {
			return err
		}

		return s.teamRepo.ClearCaptainForPlayer(ctx, exec, competitionID, playerID)
	})
	if err != nil {
		if errors.Is(err, ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return fmt.Errorf("failed to remove player %d from competition %d: %w", playerID, competitionID, err)
	}

	s.metrics.PlayersRemoved.Inc()
	s.logger.Info("player removed from competition",
		slog.Int("player_id", playerID),
		slog.Int("competition_id", competitionID))
	return nil
}
