package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Olzhas11/competition-platform/metrics"
	"github.com/Olzhas11/competition-platform/models"
)

func newVotingServiceForTest(store *fakeStore, hub TallyBroadcaster) *VotingService {
	return NewVotingService(
		&fakeCaptainVoteRepo{s: store},
		&fakeTeamRepo{s: store},
		&fakeUserRepo{s: store},
		&fakePhaseRepo{s: store},
		&fakeTxManager{store: store},
		hub,
		metrics.New(prometheus.NewRegistry()),
		store.now,
		testLogger(),
	)
}

// votingFixture поднимает команду из четырёх участников (id 1..4) и идущую
// фазу captain_voting (id 10) в соревновании 1.
func votingFixture(store *fakeStore) models.Team {
	store.addCompetition(1)
	team := store.addTeam(5, 1, nil)
	for id := 1; id <= 4; id++ {
		teamID := team.ID
		store.addUser(id, &teamID)
	}
	store.addPhase(10, 1, models.PhaseCaptainVoting,
		store.clock.Add(-time.Hour), store.clock.Add(time.Hour))
	return team
}

func TestCastCaptainVoteOverwritesPreviousChoice(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	svc := newVotingServiceForTest(store, nil)
	ctx := context.Background()

	_, err := svc.CastCaptainVote(ctx, 1, 2, team.ID, 10)
	require.NoError(t, err)
	_, err = svc.CastCaptainVote(ctx, 1, 3, team.ID, 10)
	require.NoError(t, err)

	require.Len(t, store.votes, 1)
	assert.Equal(t, 3, store.votes[0].CaptainID)
}

func TestCastCaptainVoteMembershipGuards(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	store.addUser(99, nil) // не в команде
	svc := newVotingServiceForTest(store, nil)
	ctx := context.Background()

	_, err := svc.CastCaptainVote(ctx, 99, 2, team.ID, 10)
	assert.ErrorIs(t, err, ErrNotTeamMember)

	_, err = svc.CastCaptainVote(ctx, 1, 99, team.ID, 10)
	assert.ErrorIs(t, err, ErrNotTeamMember)

	_, err = svc.CastCaptainVote(ctx, 1, 2, 777, 10)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestCastCaptainVotePhaseGuards(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	// Завершившаяся фаза голосования.
	store.addPhase(11, 1, models.PhaseCaptainVoting,
		store.clock.Add(-3*time.Hour), store.clock.Add(-2*time.Hour))
	// Идущая фаза другого типа.
	store.addPhase(12, 1, models.PhasePlayerScoring,
		store.clock.Add(-time.Hour), store.clock.Add(time.Hour))
	// Фаза чужого соревнования.
	store.addCompetition(2)
	store.addPhase(13, 2, models.PhaseCaptainVoting,
		store.clock.Add(-time.Hour), store.clock.Add(time.Hour))

	svc := newVotingServiceForTest(store, nil)
	ctx := context.Background()

	_, err := svc.CastCaptainVote(ctx, 1, 2, team.ID, 11)
	assert.ErrorIs(t, err, ErrPhaseInactive)

	_, err = svc.CastCaptainVote(ctx, 1, 2, team.ID, 12)
	assert.ErrorIs(t, err, ErrPhaseWrongType)

	_, err = svc.CastCaptainVote(ctx, 1, 2, team.ID, 13)
	assert.ErrorIs(t, err, ErrPhaseCompetitionMismatch)
}

func TestCastCaptainVoteBroadcastsTally(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	hub := &recordingBroadcaster{}
	svc := newVotingServiceForTest(store, hub)

	_, err := svc.CastCaptainVote(context.Background(), 1, 2, team.ID, 10)
	require.NoError(t, err)

	require.Len(t, hub.rooms, 1)
	assert.Equal(t, TeamRoomID(team.ID), hub.rooms[0])
}

func TestTallyCaptainVotes(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	svc := newVotingServiceForTest(store, nil)
	ctx := context.Background()

	// Участники 1 и 2 за кандидата 2, участник 3 за кандидата 4.
	// Участник 1 сначала голосует за 3, потом меняет выбор: считаться
	// должен только итоговый голос.
	_, err := svc.CastCaptainVote(ctx, 1, 3, team.ID, 10)
	require.NoError(t, err)
	_, err = svc.CastCaptainVote(ctx, 1, 2, team.ID, 10)
	require.NoError(t, err)
	_, err = svc.CastCaptainVote(ctx, 2, 2, team.ID, 10)
	require.NoError(t, err)
	_, err = svc.CastCaptainVote(ctx, 3, 4, team.ID, 10)
	require.NoError(t, err)

	tally, err := svc.TallyCaptainVotes(ctx, team.ID)
	require.NoError(t, err)

	assert.Equal(t, team.ID, tally.TeamID)
	assert.Equal(t, 3, tally.TotalVotes)
	assert.Equal(t, 4, tally.TotalMembers)
	assert.Equal(t, 3, tally.VotersDistinct)
	assert.Equal(t, 75, tally.VotingPercentage)

	require.Len(t, tally.PerCandidate, 2)
	assert.Equal(t, models.CandidateVotes{CaptainID: 2, Votes: 2}, tally.PerCandidate[0])
	assert.Equal(t, models.CandidateVotes{CaptainID: 4, Votes: 1}, tally.PerCandidate[1])
}

func TestTallyCaptainVotesTieKeepsMemberOrder(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	svc := newVotingServiceForTest(store, nil)
	ctx := context.Background()

	// По одному голосу за кандидатов 4 и 2: при равенстве голосов порядок
	// определяется порядком участников команды, а не порядком голосования.
	_, err := svc.CastCaptainVote(ctx, 1, 4, team.ID, 10)
	require.NoError(t, err)
	_, err = svc.CastCaptainVote(ctx, 2, 2, team.ID, 10)
	require.NoError(t, err)

	tally, err := svc.TallyCaptainVotes(ctx, team.ID)
	require.NoError(t, err)

	require.Len(t, tally.PerCandidate, 2)
	assert.Equal(t, 2, tally.PerCandidate[0].CaptainID)
	assert.Equal(t, 4, tally.PerCandidate[1].CaptainID)
}

func TestTallyCaptainVotesEmpty(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	svc := newVotingServiceForTest(store, nil)

	tally, err := svc.TallyCaptainVotes(context.Background(), team.ID)
	require.NoError(t, err)

	assert.Empty(t, tally.PerCandidate)
	assert.Equal(t, 0, tally.TotalVotes)
	assert.Equal(t, 0, tally.VotersDistinct)
	assert.Equal(t, 0, tally.VotingPercentage)

	_, err = svc.TallyCaptainVotes(context.Background(), 777)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestResetCaptainVoting(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	captainID := 2
	team.CaptainID = &captainID
	store.teams[team.ID] = team

	hub := &recordingBroadcaster{}
	svc := newVotingServiceForTest(store, hub)
	ctx := context.Background()

	_, err := svc.CastCaptainVote(ctx, 1, 2, team.ID, 10)
	require.NoError(t, err)

	require.NoError(t, svc.ResetCaptainVoting(ctx, team.ID))

	assert.Empty(t, store.votes)
	assert.Nil(t, store.teams[team.ID].CaptainID)

	// Голосование можно начать заново.
	_, err = svc.CastCaptainVote(ctx, 3, 4, team.ID, 10)
	require.NoError(t, err)
	require.Len(t, store.votes, 1)
}

func TestResetCaptainVotingRollsBackOnFailure(t *testing.T) {
	store := newFakeStore()
	team := votingFixture(store)
	captainID := 2
	team.CaptainID = &captainID
	store.teams[team.ID] = team

	svc := newVotingServiceForTest(store, nil)
	ctx := context.Background()

	_, err := svc.CastCaptainVote(ctx, 1, 2, team.ID, 10)
	require.NoError(t, err)

	boom := errors.New("captain update failed")
	store.failOn["team.updateCaptain"] = boom

	err = svc.ResetCaptainVoting(ctx, team.ID)
	require.ErrorIs(t, err, boom)

	// Голоса не должны пропасть, если снятие капитана не записалось.
	assert.Len(t, store.votes, 1)
	require.NotNil(t, store.teams[team.ID].CaptainID)
	assert.Equal(t, 2, *store.teams[team.ID].CaptainID)
}
