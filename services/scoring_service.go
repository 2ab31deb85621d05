package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Olzhas11/competition-platform/metrics"
	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/repositories"
)

const (
	scoreMin = 1
	scoreMax = 5

	// Веса синтеза: консенсус коллег считается надёжнее самооценки, но
	// самооценка сохраняется ради категорий, которые коллеги не наблюдают.
	selfWeight = 0.3
	peerWeight = 0.7
)

// ScoringService инкапсулирует приём самооценок и оценок коллег
// и агрегацию их в единый балл мастерства.
type ScoringService struct {
	selfScoreRepo    repositories.SelfScoreRepository
	ratingRepo       repositories.RatingRepository
	registrationRepo repositories.RegistrationRepository
	phaseRepo        repositories.PhaseRepository
	metrics          *metrics.Metrics
	now              func() time.Time
	logger           *slog.Logger
}

func NewScoringService(
	selfScoreRepo repositories.SelfScoreRepository,
	ratingRepo repositories.RatingRepository,
	registrationRepo repositories.RegistrationRepository,
	phaseRepo repositories.PhaseRepository,
	m *metrics.Metrics,
	now func() time.Time,
	logger *slog.Logger,
) *ScoringService {
	if now == nil {
		now = time.Now
	}
	return &ScoringService{
		selfScoreRepo:    selfScoreRepo,
		ratingRepo:       ratingRepo,
		registrationRepo: registrationRepo,
		phaseRepo:        phaseRepo,
		metrics:          m,
		now:              now,
		logger:           logger,
	}
}

func validateScoreCard(scores models.ScoreCard) error {
	if len(scores) == 0 {
		return ErrValidationFailed
	}
	for _, v := range scores {
		if v < scoreMin || v > scoreMax {
			return ErrScoreOutOfRange
		}
	}
	return nil
}

// requireScoringPhase выполняет общую проверку для обоих путей записи: фаза
// существует, принадлежит соревнованию, имеет тип player_scoring и идёт сейчас.
func (s *ScoringService) requireScoringPhase(ctx context.Context, phaseID, competitionID int) (*models.CompetitionPhase, error) {
	phase, err := s.phaseRepo.GetByID(ctx, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to check phase: %w", err)
	}
	if phase.CompetitionID != competitionID {
		return nil, ErrPhaseCompetitionMismatch
	}
	if err := checkPhaseWritable(phase, models.PhasePlayerScoring, s.now()); err != nil {
		return nil, err
	}
	return phase, nil
}

// UpsertSelfScore сохраняет самооценку игрока. Повторная отправка в той же
// фазе перезаписывает предыдущую запись, не создавая новую.
func (s *ScoringService) UpsertSelfScore(ctx context.Context, userID, competitionID, phaseID int, scores models.ScoreCard) (*models.PlayerSelfScore, error) {
	if err := validateScoreCard(scores); err != nil {
		return nil, err
	}
	if _, err := s.requireScoringPhase(ctx, phaseID, competitionID); err != nil {
		return nil, err
	}

	score := &models.PlayerSelfScore{
		UserID:        userID,
		CompetitionID: competitionID,
		PhaseID:       phaseID,
		Scores:        scores,
	}
	if err := s.selfScoreRepo.Upsert(ctx, score); err != nil {
		if errors.Is(err, repositories.ErrSelfScoreInvalidRefs) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to upsert self score: %w", err)
	}

	s.metrics.SelfScoresSubmitted.Inc()
	return score, nil
}

// UpsertPeerRating сохраняет оценку одного игрока другим. Самооценка через
// этот путь запрещена на сервере: фильтрация списка кандидатов на клиенте
// не является защитой.
func (s *ScoringService) UpsertPeerRating(ctx context.Context, raterID, ratedID, competitionID, phaseID int, scores models.ScoreCard) (*models.PlayerRating, error) {
	if raterID == ratedID {
		return nil, ErrSelfRatingForbidden
	}
	if err := validateScoreCard(scores); err != nil {
		return nil, err
	}
	if _, err := s.requireScoringPhase(ctx, phaseID, competitionID); err != nil {
		return nil, err
	}

	rating := &models.PlayerRating{
		RaterID:       raterID,
		RatedID:       ratedID,
		CompetitionID: competitionID,
		PhaseID:       phaseID,
		Scores:        scores,
	}
	if err := s.ratingRepo.Upsert(ctx, rating); err != nil {
		if errors.Is(err, repositories.ErrRatingInvalidRefs) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to upsert peer rating: %w", err)
	}

	s.metrics.RatingsSubmitted.Inc()
	return rating, nil
}

// ComputeProficiency читает сырые записи и синтезирует балл 0–100.
// Отсутствие записей не считается ошибкой: возвращается fallback (обычно ранее
// закэшированный балл регистрации, иначе 0).
func (s *ScoringService) ComputeProficiency(ctx context.Context, userID, competitionID, fallback int) (int, error) {
	selfScores, err := s.selfScoreRepo.ListByUserAndCompetition(ctx, userID, competitionID)
	if err != nil {
		return 0, fmt.Errorf("failed to load self scores: %w", err)
	}
	ratings, err := s.ratingRepo.ListByRatedAndCompetition(ctx, userID, competitionID)
	if err != nil {
		return 0, fmt.Errorf("failed to load peer ratings: %w", err)
	}
	return aggregateProficiency(selfScores, ratings, fallback), nil
}

// aggregateProficiency считает двухступенчатое среднее средних, НЕ плоское среднее
// по всем сырым значениям: сначала среднее по категориям внутри записи, затем
// среднее этих средних по записям. Затем взвешивание 0.3/0.7 и масштабирование
// в 0–100. Числовая схема зафиксирована тестами и меняться не должна.
func aggregateProficiency(selfScores []models.PlayerSelfScore, ratings []models.PlayerRating, fallback int) int {
	var selfSum float64
	selfCount := 0
	for _, rec := range selfScores {
		if mean, ok := rec.Scores.Mean(); ok {
			selfSum += mean
			selfCount++
		}
	}

	var peerSum float64
	peerCount := 0
	for _, rec := range ratings {
		if mean, ok := rec.Scores.Mean(); ok {
			peerSum += mean
			peerCount++
		}
	}

	var combined float64
	switch {
	case selfCount > 0 && peerCount > 0:
		combined = selfWeight*(selfSum/float64(selfCount)) + peerWeight*(peerSum/float64(peerCount))
	case selfCount > 0:
		combined = selfSum / float64(selfCount)
	case peerCount > 0:
		combined = peerSum / float64(peerCount)
	default:
		return fallback
	}

	score := int(math.Round(combined / scoreMax * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// categoryBreakdown собирает взвешенный балл по каждой категории отдельно:
// сырой разрез, который кэшируется рядом с итоговым баллом.
func categoryBreakdown(selfScores []models.PlayerSelfScore, ratings []models.PlayerRating) map[string]float64 {
	type acc struct {
		selfSum   float64
		selfCount int
		peerSum   float64
		peerCount int
	}
	byCategory := make(map[string]*acc)

	for _, rec := range selfScores {
		for category, v := range rec.Scores {
			a, ok := byCategory[category]
			if !ok {
				a = &acc{}
				byCategory[category] = a
			}
			a.selfSum += float64(v)
			a.selfCount++
		}
	}
	for _, rec := range ratings {
		for category, v := range rec.Scores {
			a, ok := byCategory[category]
			if !ok {
				a = &acc{}
				byCategory[category] = a
			}
			a.peerSum += float64(v)
			a.peerCount++
		}
	}

	breakdown := make(map[string]float64, len(byCategory))
	for category, a := range byCategory {
		switch {
		case a.selfCount > 0 && a.peerCount > 0:
			breakdown[category] = selfWeight*(a.selfSum/float64(a.selfCount)) + peerWeight*(a.peerSum/float64(a.peerCount))
		case a.selfCount > 0:
			breakdown[category] = a.selfSum / float64(a.selfCount)
		case a.peerCount > 0:
			breakdown[category] = a.peerSum / float64(a.peerCount)
		}
	}
	return breakdown
}

// CommitProficiency пересчитывает балл и записывает его в кэш регистрации.
// Запись выполняется обычным upsert поверх user_competitions, в контракт агрегатора
// не входит.
func (s *ScoringService) CommitProficiency(ctx context.Context, userID, competitionID int) (int, error) {
	reg, err := s.registrationRepo.GetByUserAndCompetition(ctx, userID, competitionID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return 0, ErrRegistrationNotFound
		}
		return 0, fmt.Errorf("failed to load registration: %w", err)
	}

	selfScores, err := s.selfScoreRepo.ListByUserAndCompetition(ctx, userID, competitionID)
	if err != nil {
		return 0, fmt.Errorf("failed to load self scores: %w", err)
	}
	ratings, err := s.ratingRepo.ListByRatedAndCompetition(ctx, userID, competitionID)
	if err != nil {
		return 0, fmt.Errorf("failed to load peer ratings: %w", err)
	}

	score := aggregateProficiency(selfScores, ratings, reg.ProficiencyScore)
	breakdown := categoryBreakdown(selfScores, ratings)

	if err := s.registrationRepo.UpdateProficiency(ctx, userID, competitionID, score, breakdown); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return 0, ErrRegistrationNotFound
		}
		return 0, fmt.Errorf("failed to commit proficiency score: %w", err)
	}

	s.logger.Info("proficiency score committed",
		slog.Int("user_id", userID),
		slog.Int("competition_id", competitionID),
		slog.Int("score", score))
	return score, nil
}
