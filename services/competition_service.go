package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/repositories"
	"github.com/Olzhas11/competition-platform/storage"
)

var validCompetitionStatuses = map[models.CompetitionStatus]struct{}{
	models.CompetitionUpcoming: {},
	models.CompetitionActive:   {},
	models.CompetitionInactive: {},
}

// CompetitionService инкапсулирует бизнес-логику соревнований.
type CompetitionService struct {
	repo     repositories.CompetitionRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewCompetitionService(repo repositories.CompetitionRepository, uploader storage.FileUploader, logger *slog.Logger) *CompetitionService {
	return &CompetitionService{
		repo:     repo,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *CompetitionService) CreateCompetition(ctx context.Context, competition *models.Competition) error {
	if competition.Name == "" {
		return ErrCompetitionNameRequired
	}
	if competition.EndDate.Before(competition.StartDate) {
		return ErrCompetitionInvalidDateRange
	}
	if competition.Status == "" {
		competition.Status = models.CompetitionUpcoming
	}
	if _, ok := validCompetitionStatuses[competition.Status]; !ok {
		return ErrCompetitionInvalidStatus
	}

	if err := s.repo.Create(ctx, competition); err != nil {
		if errors.Is(err, repositories.ErrCompetitionNameConflict) {
			return ErrCompetitionNameConflict
		}
		return fmt.Errorf("failed to create competition: %w", err)
	}
	return nil
}

func (s *CompetitionService) GetCompetitionByID(ctx context.Context, id int) (*models.Competition, error) {
	competition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	s.attachLogoURL(competition)
	return competition, nil
}

func (s *CompetitionService) ListCompetitions(ctx context.Context, limit, offset int) ([]models.Competition, error) {
	competitions, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range competitions {
		s.attachLogoURL(&competitions[i])
	}
	return competitions, nil
}

func (s *CompetitionService) UpdateCompetition(ctx context.Context, competition *models.Competition) error {
	if competition.Name == "" {
		return ErrCompetitionNameRequired
	}
	if competition.EndDate.Before(competition.StartDate) {
		return ErrCompetitionInvalidDateRange
	}
	if _, ok := validCompetitionStatuses[competition.Status]; !ok {
		return ErrCompetitionInvalidStatus
	}

	if err := s.repo.Update(ctx, competition); err != nil {
		switch {
		case errors.Is(err, repositories.ErrCompetitionNotFound):
			return ErrCompetitionNotFound
		case errors.Is(err, repositories.ErrCompetitionNameConflict):
			return ErrCompetitionNameConflict
		}
		return fmt.Errorf("failed to update competition %d: %w", competition.ID, err)
	}
	return nil
}

func (s *CompetitionService) UpdateCompetitionStatus(ctx context.Context, id int, status models.CompetitionStatus) error {
	if _, ok := validCompetitionStatuses[status]; !ok {
		return ErrCompetitionInvalidStatus
	}
	err := s.repo.UpdateStatus(ctx, id, status)
	if errors.Is(err, repositories.ErrCompetitionNotFound) {
		return ErrCompetitionNotFound
	}
	return err
}

func (s *CompetitionService) DeleteCompetition(ctx context.Context, id int) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrCompetitionNotFound) {
		return ErrCompetitionNotFound
	}
	return err
}

// UploadLogo загружает логотип соревнования в R2 и сохраняет ключ.
// Предыдущий логотип удаляется по принципу best effort.
func (s *CompetitionService) UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (string, error) {
	competition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return "", ErrCompetitionNotFound
		}
		return "", err
	}

	key := fmt.Sprintf("competitions/%d/logo", id)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return "", fmt.Errorf("failed to upload competition logo: %w", err)
	}

	if err := s.repo.UpdateLogoKey(ctx, id, &result.Key); err != nil {
		return "", fmt.Errorf("failed to persist competition logo key: %w", err)
	}

	if competition.LogoKey != nil && *competition.LogoKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *competition.LogoKey); delErr != nil {
			s.logger.Warn("failed to delete previous competition logo",
				slog.String("key", *competition.LogoKey), slog.Any("error", delErr))
		}
	}

	return result.Location, nil
}

func (s *CompetitionService) attachLogoURL(c *models.Competition) {
	if s.uploader == nil || c.LogoKey == nil {
		return
	}
	if u := s.uploader.GetPublicURL(*c.LogoKey); u != "" {
		c.LogoURL = &u
	}
}
