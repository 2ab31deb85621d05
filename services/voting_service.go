package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/Olzhas11/competition-platform/metrics"
	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/repositories"
)

// TallyBroadcaster рассылает свежие итоги голосования подписчикам комнаты
// команды. Реализуется live.Hub; nil допустим (рассылка отключена).
type TallyBroadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// TeamRoomID возвращает id websocket-комнаты для команды.
func TeamRoomID(teamID int) string {
	return "team_" + strconv.Itoa(teamID)
}

// VotingService инкапсулирует голосование за капитана команды.
type VotingService struct {
	voteRepo  repositories.CaptainVoteRepository
	teamRepo  repositories.TeamRepository
	userRepo  repositories.UserRepository
	phaseRepo repositories.PhaseRepository
	txManager repositories.TxManager
	hub       TallyBroadcaster
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

func NewVotingService(
	voteRepo repositories.CaptainVoteRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	phaseRepo repositories.PhaseRepository,
	txManager repositories.TxManager,
	hub TallyBroadcaster,
	m *metrics.Metrics,
	now func() time.Time,
	logger *slog.Logger,
) *VotingService {
	if now == nil {
		now = time.Now
	}
	return &VotingService{
		voteRepo:  voteRepo,
		teamRepo:  teamRepo,
		userRepo:  userRepo,
		phaseRepo: phaseRepo,
		txManager: txManager,
		hub:       hub,
		metrics:   m,
		now:       now,
		logger:    logger,
	}
}

// CastCaptainVote записывает голос участника. Повторный голос того же
// участника в той же фазе заменяет выбор капитана, а не добавляет строку.
func (s *VotingService) CastCaptainVote(ctx context.Context, voterID, captainID, teamID, phaseID int) (*models.CaptainVote, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to check team: %w", err)
	}

	phase, err := s.phaseRepo.GetByID(ctx, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to check phase: %w", err)
	}
	if phase.CompetitionID != team.CompetitionID {
		return nil, ErrPhaseCompetitionMismatch
	}
	if err := checkPhaseWritable(phase, models.PhaseCaptainVoting, s.now()); err != nil {
		return nil, err
	}

	// Голосующий и выбранный капитан должны быть текущими участниками команды.
	members, err := s.userRepo.ListByTeam(ctx, nil, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team members: %w", err)
	}
	voterIsMember, captainIsMember := false, false
	for _, m := range members {
		if m.ID == voterID {
			voterIsMember = true
		}
		if m.ID == captainID {
			captainIsMember = true
		}
	}
	if !voterIsMember || !captainIsMember {
		return nil, ErrNotTeamMember
	}

	vote := &models.CaptainVote{
		VoterID:       voterID,
		CaptainID:     captainID,
		TeamID:        teamID,
		CompetitionID: team.CompetitionID,
		PhaseID:       phaseID,
	}
	if err := s.voteRepo.Upsert(ctx, vote); err != nil {
		if errors.Is(err, repositories.ErrCaptainVoteInvalidRefs) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to upsert captain vote: %w", err)
	}

	s.metrics.VotesCast.Inc()
	s.broadcastTally(ctx, teamID)
	return vote, nil
}

// TallyCaptainVotes агрегирует голоса команды. Ноль голосов считается нормальным
// состоянием идущей фазы: возвращается пустой результат, а не ошибка.
func (s *VotingService) TallyCaptainVotes(ctx context.Context, teamID int) (*models.CaptainVoteTally, error) {
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to check team: %w", err)
	}

	members, err := s.userRepo.ListByTeam(ctx, nil, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team members: %w", err)
	}
	votes, err := s.voteRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load captain votes: %w", err)
	}

	counts := make(map[int]int)
	voters := make(map[int]struct{})
	for _, v := range votes {
		counts[v.CaptainID]++
		voters[v.VoterID] = struct{}{}
	}

	// Порядок кандидатов строится по списку участников команды, а не по
	// порядку вставки голосов: при равенстве голосов он и остаётся тай-брейком.
	perCandidate := make([]models.CandidateVotes, 0, len(counts))
	seen := make(map[int]struct{}, len(counts))
	for _, m := range members {
		if n, ok := counts[m.ID]; ok {
			perCandidate = append(perCandidate, models.CandidateVotes{CaptainID: m.ID, Votes: n})
			seen[m.ID] = struct{}{}
		}
	}
	// Исторические голоса за уже вышедших из команды кандидатов.
	for _, v := range votes {
		if _, ok := seen[v.CaptainID]; !ok {
			perCandidate = append(perCandidate, models.CandidateVotes{CaptainID: v.CaptainID, Votes: counts[v.CaptainID]})
			seen[v.CaptainID] = struct{}{}
		}
	}
	sort.SliceStable(perCandidate, func(i, j int) bool {
		return perCandidate[i].Votes > perCandidate[j].Votes
	})

	percentage := 0
	if len(members) > 0 {
		percentage = int(math.Round(float64(len(voters)) / float64(len(members)) * 100))
	}

	return &models.CaptainVoteTally{
		TeamID:           teamID,
		PerCandidate:     perCandidate,
		TotalVotes:       len(votes),
		TotalMembers:     len(members),
		VotersDistinct:   len(voters),
		VotingPercentage: percentage,
	}, nil
}

// ResetCaptainVoting атомарно удаляет все голоса команды и снимает капитана.
// Используется для перезапуска голосования.
func (s *VotingService) ResetCaptainVoting(ctx context.Context, teamID int) error {
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to check team: %w", err)
	}

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.voteRepo.DeleteByTeam(ctx, exec, teamID); err != nil {
			return err
		}
		return s.teamRepo.UpdateCaptain(ctx, exec, teamID, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to reset captain voting for team %d: %w", teamID, err)
	}

	s.metrics.VotingResets.Inc()
	s.logger.Info("captain voting reset", slog.Int("team_id", teamID))
	s.broadcastTally(ctx, teamID)
	return nil
}

// broadcastTally шлёт свежие итоги в комнату команды. Ошибка рассылки не
// должна ронять уже зафиксированную запись, поэтому только логируется.
func (s *VotingService) broadcastTally(ctx context.Context, teamID int) {
	if s.hub == nil {
		return
	}
	tally, err := s.TallyCaptainVotes(ctx, teamID)
	if err != nil {
		s.logger.Error("failed to compute tally for broadcast",
			slog.Int("team_id", teamID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(TeamRoomID(teamID), map[string]interface{}{
		"type":    "CAPTAIN_VOTE_TALLY",
		"payload": tally,
	})
}
