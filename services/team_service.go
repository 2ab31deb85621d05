package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/repositories"
)

// TeamService инкапсулирует бизнес-логику команд и их составов.
type TeamService struct {
	teamRepo        repositories.TeamRepository
	userRepo        repositories.UserRepository
	competitionRepo repositories.CompetitionRepository
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	competitionRepo repositories.CompetitionRepository,
) *TeamService {
	return &TeamService{
		teamRepo:        teamRepo,
		userRepo:        userRepo,
		competitionRepo: competitionRepo,
	}
}

type CreateTeamInput struct {
	CompetitionID int    `json:"competition_id"`
	Name          string `json:"name"`
}

func (s *TeamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	if input.Name == "" {
		return nil, ErrTeamNameRequired
	}
	if _, err := s.competitionRepo.GetByID(ctx, input.CompetitionID); err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to check competition: %w", err)
	}

	team := &models.Team{
		CompetitionID: input.CompetitionID,
		Name:          input.Name,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameConflict
		case errors.Is(err, repositories.ErrTeamInvalidCompetition):
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

// GetTeamByID возвращает команду вместе с составом.
func (s *TeamService) GetTeamByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	members, err := s.userRepo.ListByTeam(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load team members: %w", err)
	}
	team.Members = members
	return team, nil
}

func (s *TeamService) ListTeams(ctx context.Context, competitionID int) ([]models.Team, error) {
	return s.teamRepo.ListByCompetition(ctx, competitionID)
}

func (s *TeamService) UpdateTeam(ctx context.Context, id int, name string) (*models.Team, error) {
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	team.Name = name
	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to update team %d: %w", id, err)
	}
	return team, nil
}

// JoinTeam включает игрока в состав. Игрок может состоять только в одной команде.
func (s *TeamService) JoinTeam(ctx context.Context, userID, teamID int) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to check user: %w", err)
	}
	if user.TeamID != nil {
		return ErrUserAlreadyInTeam
	}
	if _, err := s.teamRepo.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to check team: %w", err)
	}
	return s.userRepo.UpdateTeamID(ctx, nil, userID, &teamID)
}

// LeaveTeam выводит игрока из состава. Капитана сначала нужно снять
// (сбросом голосования или полным удалением игрока из соревнования).
func (s *TeamService) LeaveTeam(ctx context.Context, userID, teamID int) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to check user: %w", err)
	}
	if user.TeamID == nil || *user.TeamID != teamID {
		return ErrUserNotInTeam
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to check team: %w", err)
	}
	if team.CaptainID != nil && *team.CaptainID == userID {
		return ErrCannotRemoveCaptain
	}

	return s.userRepo.UpdateTeamID(ctx, nil, userID, nil)
}

func (s *TeamService) DeleteTeam(ctx context.Context, id int) error {
	err := s.teamRepo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrTeamNotFound) {
		return ErrTeamNotFound
	}
	return err
}
