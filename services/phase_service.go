package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/repositories"
)

// ResolvePhaseStatus вычисляет статус фазы из её дат и текущего момента.
// Чистая функция: хранилище не читает и не пишет, сохранять результат
// решает вызывающий.
//
// При StartDate == EndDate фаза "in-progress" только в этот единственный
// момент, иначе сразу "completed".
func ResolvePhaseStatus(startDate, endDate, now time.Time) models.PhaseStatus {
	switch {
	case now.Before(startDate):
		return models.PhasePending
	case now.After(endDate):
		return models.PhaseCompleted
	default:
		return models.PhaseInProgress
	}
}

// checkPhaseWritable проверяет, что фаза нужного типа и сейчас идёт.
// Общая проверка для самооценок, оценок коллег и голосования: пути записи
// обязаны валидироваться одинаково.
func checkPhaseWritable(phase *models.CompetitionPhase, want models.PhaseType, now time.Time) error {
	if phase.Type != want {
		return ErrPhaseWrongType
	}
	if ResolvePhaseStatus(phase.StartDate, phase.EndDate, now) != models.PhaseInProgress {
		return ErrPhaseInactive
	}
	return nil
}

var validPhaseTypes = map[models.PhaseType]struct{}{
	models.PhaseRegistration:  {},
	models.PhaseTeamFormation: {},
	models.PhaseCaptainVoting: {},
	models.PhasePlayerScoring: {},
	models.PhaseCompetition:   {},
	models.PhaseAwards:        {},
}

// PhaseService инкапсулирует жизненный цикл фаз соревнования.
type PhaseService struct {
	phaseRepo       repositories.PhaseRepository
	competitionRepo repositories.CompetitionRepository
	now             func() time.Time
	logger          *slog.Logger
}

// NewPhaseService создаёт PhaseService. now инжектируется для тестов;
// nil означает time.Now.
func NewPhaseService(
	phaseRepo repositories.PhaseRepository,
	competitionRepo repositories.CompetitionRepository,
	now func() time.Time,
	logger *slog.Logger,
) *PhaseService {
	if now == nil {
		now = time.Now
	}
	return &PhaseService{
		phaseRepo:       phaseRepo,
		competitionRepo: competitionRepo,
		now:             now,
		logger:          logger,
	}
}

type CreatePhaseInput struct {
	CompetitionID int              `json:"competition_id"`
	Name          string           `json:"name"`
	Description   *string          `json:"description,omitempty"`
	Type          models.PhaseType `json:"type"`
	Order         int              `json:"order"`
	StartDate     time.Time        `json:"start_date"`
	EndDate       time.Time        `json:"end_date"`
}

// CreatePhase создаёт фазу. Статус всегда вычисляется из переданных дат
// на момент создания, а не проставляется "pending" по умолчанию.
func (s *PhaseService) CreatePhase(ctx context.Context, input CreatePhaseInput) (*models.CompetitionPhase, error) {
	if input.Name == "" {
		return nil, ErrValidationFailed
	}
	if _, ok := validPhaseTypes[input.Type]; !ok {
		return nil, ErrPhaseInvalidType
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, ErrPhaseInvalidDateRange
	}

	if _, err := s.competitionRepo.GetByID(ctx, input.CompetitionID); err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to check competition: %w", err)
	}

	phase := &models.CompetitionPhase{
		CompetitionID: input.CompetitionID,
		Name:          input.Name,
		Description:   input.Description,
		Type:          input.Type,
		Order:         input.Order,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		Status:        ResolvePhaseStatus(input.StartDate, input.EndDate, s.now()),
	}

	if err := s.phaseRepo.Create(ctx, phase); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPhaseOrderConflict):
			return nil, ErrPhaseOrderConflict
		case errors.Is(err, repositories.ErrPhaseInvalidCompetition):
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to create phase: %w", err)
	}
	return phase, nil
}

func (s *PhaseService) GetPhaseByID(ctx context.Context, id int) (*models.CompetitionPhase, error) {
	phase, err := s.phaseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}
	// Статус является производным полем: на чтении всегда отдаём актуальное значение.
	phase.Status = ResolvePhaseStatus(phase.StartDate, phase.EndDate, s.now())
	return phase, nil
}

// ListPhases возвращает фазы соревнования в порядке их позиции,
// со статусами, пересчитанными на момент чтения.
func (s *PhaseService) ListPhases(ctx context.Context, competitionID int) ([]models.CompetitionPhase, error) {
	phases, err := s.phaseRepo.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range phases {
		phases[i].Status = ResolvePhaseStatus(phases[i].StartDate, phases[i].EndDate, now)
	}
	return phases, nil
}

type UpdatePhaseInput struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Type        *models.PhaseType `json:"type,omitempty"`
	Order       *int              `json:"order,omitempty"`
	StartDate   *time.Time        `json:"start_date,omitempty"`
	EndDate     *time.Time        `json:"end_date,omitempty"`
}

// UpdatePhase применяет частичное обновление. При любой записи дат статус
// пересчитывается и сохраняется вместе с ними.
func (s *PhaseService) UpdatePhase(ctx context.Context, id int, input UpdatePhaseInput) (*models.CompetitionPhase, error) {
	phase, err := s.phaseRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrValidationFailed
		}
		phase.Name = *input.Name
	}
	if input.Description != nil {
		phase.Description = input.Description
	}
	if input.Type != nil {
		if _, ok := validPhaseTypes[*input.Type]; !ok {
			return nil, ErrPhaseInvalidType
		}
		phase.Type = *input.Type
	}
	if input.Order != nil {
		phase.Order = *input.Order
	}
	if input.StartDate != nil {
		phase.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		phase.EndDate = *input.EndDate
	}

	if phase.EndDate.Before(phase.StartDate) {
		return nil, ErrPhaseInvalidDateRange
	}
	phase.Status = ResolvePhaseStatus(phase.StartDate, phase.EndDate, s.now())

	if err := s.phaseRepo.Update(ctx, phase); err != nil {
		switch {
		case errors.Is(err, repositories.ErrPhaseNotFound):
			return nil, ErrPhaseNotFound
		case errors.Is(err, repositories.ErrPhaseOrderConflict):
			return nil, ErrPhaseOrderConflict
		}
		return nil, fmt.Errorf("failed to update phase %d: %w", id, err)
	}
	return phase, nil
}

func (s *PhaseService) DeletePhase(ctx context.Context, id int) error {
	err := s.phaseRepo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrPhaseNotFound) {
		return ErrPhaseNotFound
	}
	return err
}

// RefreshPhaseStatuses досохраняет производные статусы фаз, у которых они
// разошлись с датами. Вызывается планировщиком из main.
func (s *PhaseService) RefreshPhaseStatuses(ctx context.Context) error {
	now := s.now()
	stale, err := s.phaseRepo.ListForStatusRefresh(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list phases for status refresh: %w", err)
	}

	updated := 0
	for i := range stale {
		phase := &stale[i]
		status := ResolvePhaseStatus(phase.StartDate, phase.EndDate, now)
		if status == phase.Status {
			continue
		}
		if err := s.phaseRepo.UpdateStatus(ctx, nil, phase.ID, status); err != nil {
			// Не прерываем проход: остальные фазы всё ещё могут обновиться.
			s.logger.Error("failed to refresh phase status",
				slog.Int("phase_id", phase.ID), slog.Any("error", err))
			continue
		}
		updated++
	}

	if updated > 0 {
		s.logger.Info("phase statuses refreshed", slog.Int("updated", updated))
	}
	return nil
}
