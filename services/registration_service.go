package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/repositories"
)

// RegistrationService инкапсулирует заявки игроков на соревнования.
type RegistrationService struct {
	registrationRepo repositories.RegistrationRepository
	competitionRepo  repositories.CompetitionRepository
	userRepo         repositories.UserRepository
}

func NewRegistrationService(
	registrationRepo repositories.RegistrationRepository,
	competitionRepo repositories.CompetitionRepository,
	userRepo repositories.UserRepository,
) *RegistrationService {
	return &RegistrationService{
		registrationRepo: registrationRepo,
		competitionRepo:  competitionRepo,
		userRepo:         userRepo,
	}
}

// RegisterPlayer подаёт заявку игрока на соревнование со статусом "registered".
func (s *RegistrationService) RegisterPlayer(ctx context.Context, userID, competitionID int) (*models.UserCompetition, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	competition, err := s.competitionRepo.GetByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to check competition: %w", err)
	}
	if competition.Status == models.CompetitionInactive {
		return nil, ErrRegistrationNotOpen
	}

	registration := &models.UserCompetition{
		UserID:        userID,
		CompetitionID: competitionID,
		Status:        models.RegistrationRegistered,
	}
	if err := s.registrationRepo.Create(ctx, registration); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRegistrationConflict):
			return nil, ErrRegistrationConflict
		case errors.Is(err, repositories.ErrRegistrationInvalidRefs):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return registration, nil
}

// ApproveRegistration переводит заявку в статус "approved".
func (s *RegistrationService) ApproveRegistration(ctx context.Context, userID, competitionID int) error {
	err := s.registrationRepo.UpdateStatus(ctx, userID, competitionID, models.RegistrationApproved)
	if errors.Is(err, repositories.ErrRegistrationNotFound) {
		return ErrRegistrationNotFound
	}
	return err
}

func (s *RegistrationService) GetRegistration(ctx context.Context, userID, competitionID int) (*models.UserCompetition, error) {
	registration, err := s.registrationRepo.GetByUserAndCompetition(ctx, userID, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return registration, nil
}

func (s *RegistrationService) ListRegistrations(ctx context.Context, competitionID int) ([]models.UserCompetition, error) {
	return s.registrationRepo.ListByCompetition(ctx, competitionID)
}
