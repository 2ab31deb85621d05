package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Olzhas11/competition-platform/metrics"
	"github.com/Olzhas11/competition-platform/models"
)

func newScoringServiceForTest(store *fakeStore) *ScoringService {
	return NewScoringService(
		&fakeSelfScoreRepo{s: store},
		&fakeRatingRepo{s: store},
		&fakeRegistrationRepo{s: store},
		&fakePhaseRepo{s: store},
		metrics.New(prometheus.NewRegistry()),
		store.now,
		testLogger(),
	)
}

// scoringFixture поднимает соревнование с идущей фазой player_scoring.
func scoringFixture(store *fakeStore) models.CompetitionPhase {
	store.addCompetition(1)
	return store.addPhase(10, 1, models.PhasePlayerScoring,
		store.clock.Add(-time.Hour), store.clock.Add(time.Hour))
}

func TestAggregateProficiencyWeightedSynthesis(t *testing.T) {
	// Самооценка {4,2} → 3.0; оценки коллег 5.0 и 4.0 → 4.5.
	// 0.3*3.0 + 0.7*4.5 = 4.05 → round(4.05/5*100) = 81.
	selfScores := []models.PlayerSelfScore{
		{Scores: models.ScoreCard{"attack": 4, "defense": 2}},
	}
	ratings := []models.PlayerRating{
		{Scores: models.ScoreCard{"attack": 5}},
		{Scores: models.ScoreCard{"attack": 4}},
	}

	assert.Equal(t, 81, aggregateProficiency(selfScores, ratings, 0))
}

func TestAggregateProficiencySingleSource(t *testing.T) {
	selfOnly := []models.PlayerSelfScore{
		{Scores: models.ScoreCard{"attack": 4, "defense": 2}},
	}
	// Без оценок коллег вес не применяется: 3.0/5*100 = 60.
	assert.Equal(t, 60, aggregateProficiency(selfOnly, nil, 0))

	peersOnly := []models.PlayerRating{
		{Scores: models.ScoreCard{"attack": 5}},
		{Scores: models.ScoreCard{"attack": 4}},
	}
	// 4.5/5*100 = 90.
	assert.Equal(t, 90, aggregateProficiency(nil, peersOnly, 0))
}

func TestAggregateProficiencyMeanOfMeans(t *testing.T) {
	// Запись с одной категорией весит столько же, сколько запись с тремя:
	// (5.0 + 1.0) / 2 = 3.0 → 60, а не плоское среднее 4.0 → 80.
	ratings := []models.PlayerRating{
		{Scores: models.ScoreCard{"a": 5, "b": 5, "c": 5}},
		{Scores: models.ScoreCard{"a": 1}},
	}
	assert.Equal(t, 60, aggregateProficiency(nil, ratings, 0))
}

func TestAggregateProficiencyFallback(t *testing.T) {
	assert.Equal(t, 37, aggregateProficiency(nil, nil, 37))
	assert.Equal(t, 0, aggregateProficiency(nil, nil, 0))

	// Записи с пустыми карточками не считаются источником данных.
	empty := []models.PlayerSelfScore{{Scores: models.ScoreCard{}}}
	assert.Equal(t, 37, aggregateProficiency(empty, nil, 37))
}

func TestUpsertSelfScoreOverwrites(t *testing.T) {
	store := newFakeStore()
	scoringFixture(store)
	svc := newScoringServiceForTest(store)

	first, err := svc.UpsertSelfScore(context.Background(), 1, 1, 10, models.ScoreCard{"attack": 3})
	require.NoError(t, err)

	store.clock = store.clock.Add(time.Minute)
	second, err := svc.UpsertSelfScore(context.Background(), 1, 1, 10, models.ScoreCard{"attack": 5})
	require.NoError(t, err)

	require.Len(t, store.selfScores, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.ScoreCard{"attack": 5}, store.selfScores[0].Scores)
	assert.True(t, second.UpdatedAt.After(first.CreatedAt))
}

func TestUpsertSelfScoreValidation(t *testing.T) {
	store := newFakeStore()
	scoringFixture(store)
	svc := newScoringServiceForTest(store)

	_, err := svc.UpsertSelfScore(context.Background(), 1, 1, 10, models.ScoreCard{})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = svc.UpsertSelfScore(context.Background(), 1, 1, 10, models.ScoreCard{"attack": 6})
	assert.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = svc.UpsertSelfScore(context.Background(), 1, 1, 10, models.ScoreCard{"attack": 0})
	assert.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = svc.UpsertSelfScore(context.Background(), 1, 1, 99, models.ScoreCard{"attack": 3})
	assert.ErrorIs(t, err, ErrPhaseNotFound)
}

func TestScoringPhaseGuards(t *testing.T) {
	store := newFakeStore()
	store.addCompetition(1)
	store.addCompetition(2)

	// Фаза нужного типа, но уже завершившаяся.
	store.addPhase(20, 1, models.PhasePlayerScoring,
		store.clock.Add(-2*time.Hour), store.clock.Add(-time.Hour))
	// Идущая фаза другого типа.
	store.addPhase(21, 1, models.PhaseCaptainVoting,
		store.clock.Add(-time.Hour), store.clock.Add(time.Hour))
	// Идущая фаза player_scoring чужого соревнования.
	store.addPhase(22, 2, models.PhasePlayerScoring,
		store.clock.Add(-time.Hour), store.clock.Add(time.Hour))

	svc := newScoringServiceForTest(store)
	card := models.ScoreCard{"attack": 3}

	_, err := svc.UpsertSelfScore(context.Background(), 1, 1, 20, card)
	assert.ErrorIs(t, err, ErrPhaseInactive)

	_, err = svc.UpsertSelfScore(context.Background(), 1, 1, 21, card)
	assert.ErrorIs(t, err, ErrPhaseWrongType)

	_, err = svc.UpsertSelfScore(context.Background(), 1, 1, 22, card)
	assert.ErrorIs(t, err, ErrPhaseCompetitionMismatch)

	// Оба пути записи валидируются одинаково.
	_, err = svc.UpsertPeerRating(context.Background(), 1, 2, 1, 20, card)
	assert.ErrorIs(t, err, ErrPhaseInactive)

	_, err = svc.UpsertPeerRating(context.Background(), 1, 2, 1, 21, card)
	assert.ErrorIs(t, err, ErrPhaseWrongType)
}

func TestUpsertPeerRatingForbidsSelfRating(t *testing.T) {
	store := newFakeStore()
	scoringFixture(store)
	svc := newScoringServiceForTest(store)

	_, err := svc.UpsertPeerRating(context.Background(), 7, 7, 1, 10, models.ScoreCard{"attack": 3})
	assert.ErrorIs(t, err, ErrSelfRatingForbidden)
	assert.Empty(t, store.ratings)
}

func TestUpsertPeerRatingOverwritesPerRaterPair(t *testing.T) {
	store := newFakeStore()
	scoringFixture(store)
	svc := newScoringServiceForTest(store)

	_, err := svc.UpsertPeerRating(context.Background(), 1, 2, 1, 10, models.ScoreCard{"attack": 2})
	require.NoError(t, err)
	_, err = svc.UpsertPeerRating(context.Background(), 1, 2, 1, 10, models.ScoreCard{"attack": 4})
	require.NoError(t, err)
	// Другой оценивающий создаёт отдельную запись.
	_, err = svc.UpsertPeerRating(context.Background(), 3, 2, 1, 10, models.ScoreCard{"attack": 5})
	require.NoError(t, err)

	require.Len(t, store.ratings, 2)
	assert.Equal(t, models.ScoreCard{"attack": 4}, store.ratings[0].Scores)
}

func TestComputeProficiencyUsesFallback(t *testing.T) {
	store := newFakeStore()
	scoringFixture(store)
	svc := newScoringServiceForTest(store)

	score, err := svc.ComputeProficiency(context.Background(), 1, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, score)
}

func TestCommitProficiencyWritesCache(t *testing.T) {
	store := newFakeStore()
	scoringFixture(store)
	store.addRegistration(1, 1, 37)
	svc := newScoringServiceForTest(store)

	// Без записей коммит сохраняет прежний кэш.
	score, err := svc.CommitProficiency(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 37, score)

	_, err = svc.UpsertSelfScore(context.Background(), 1, 1, 10, models.ScoreCard{"attack": 4, "defense": 2})
	require.NoError(t, err)
	_, err = svc.UpsertPeerRating(context.Background(), 2, 1, 1, 10, models.ScoreCard{"attack": 5})
	require.NoError(t, err)
	_, err = svc.UpsertPeerRating(context.Background(), 3, 1, 1, 10, models.ScoreCard{"attack": 4})
	require.NoError(t, err)

	score, err = svc.CommitProficiency(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 81, score)

	reg := store.registrations[[2]int{1, 1}]
	assert.Equal(t, 81, reg.ProficiencyScore)
	// attack: 0.3*4 + 0.7*4.5 = 4.35; defense видели только в самооценке.
	assert.InDelta(t, 4.35, reg.Proficiencies["attack"], 1e-9)
	assert.InDelta(t, 2.0, reg.Proficiencies["defense"], 1e-9)

	_, err = svc.CommitProficiency(context.Background(), 9, 1)
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}
