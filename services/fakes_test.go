package services

import (
	"context"
	"time"

	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/repositories"
)

// fakeStore хранит общее in-memory состояние для тестовых репозиториев.
// failOn инжектирует ошибку на именованном шаге, чтобы проверять откат.
type fakeStore struct {
	clock time.Time

	users         map[int]models.User
	competitions  map[int]models.Competition
	phases        map[int]models.CompetitionPhase
	teams         map[int]models.Team
	registrations map[[2]int]models.UserCompetition // (userID, competitionID)
	selfScores    []models.PlayerSelfScore
	ratings       []models.PlayerRating
	votes         []models.CaptainVote

	nextID int
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:         time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		users:         make(map[int]models.User),
		competitions:  make(map[int]models.Competition),
		phases:        make(map[int]models.CompetitionPhase),
		teams:         make(map[int]models.Team),
		registrations: make(map[[2]int]models.UserCompetition),
		nextID:        1000,
		failOn:        make(map[string]error),
	}
}

func (s *fakeStore) now() time.Time { return s.clock }

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) fail(step string) error {
	return s.failOn[step]
}

// snapshot копирует изменяемые коллекции, чтобы fakeTxManager мог
// восстановить состояние после неудачной "транзакции".
func (s *fakeStore) snapshot() *fakeStore {
	cp := &fakeStore{
		clock:         s.clock,
		users:         make(map[int]models.User, len(s.users)),
		competitions:  make(map[int]models.Competition, len(s.competitions)),
		phases:        make(map[int]models.CompetitionPhase, len(s.phases)),
		teams:         make(map[int]models.Team, len(s.teams)),
		registrations: make(map[[2]int]models.UserCompetition, len(s.registrations)),
		selfScores:    append([]models.PlayerSelfScore(nil), s.selfScores...),
		ratings:       append([]models.PlayerRating(nil), s.ratings...),
		votes:         append([]models.CaptainVote(nil), s.votes...),
		nextID:        s.nextID,
		failOn:        s.failOn,
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.competitions {
		cp.competitions[k] = v
	}
	for k, v := range s.phases {
		cp.phases[k] = v
	}
	for k, v := range s.teams {
		cp.teams[k] = v
	}
	for k, v := range s.registrations {
		cp.registrations[k] = v
	}
	return cp
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.users = snap.users
	s.competitions = snap.competitions
	s.phases = snap.phases
	s.teams = snap.teams
	s.registrations = snap.registrations
	s.selfScores = snap.selfScores
	s.ratings = snap.ratings
	s.votes = snap.votes
	s.nextID = snap.nextID
}

// Удобные конструкторы тестовых данных.

func (s *fakeStore) addUser(id int, teamID *int) models.User {
	u := models.User{ID: id, FirstName: "U", LastName: "U", Role: models.RolePlayer, TeamID: teamID}
	s.users[id] = u
	return u
}

func (s *fakeStore) addCompetition(id int) models.Competition {
	c := models.Competition{ID: id, Name: "Cup", Year: 2025, Status: models.CompetitionActive}
	s.competitions[id] = c
	return c
}

func (s *fakeStore) addPhase(id, competitionID int, phaseType models.PhaseType, start, end time.Time) models.CompetitionPhase {
	p := models.CompetitionPhase{
		ID:            id,
		CompetitionID: competitionID,
		Name:          string(phaseType),
		Type:          phaseType,
		Order:         id,
		StartDate:     start,
		EndDate:       end,
		Status:        ResolvePhaseStatus(start, end, s.clock),
	}
	s.phases[id] = p
	return p
}

func (s *fakeStore) addTeam(id, competitionID int, captainID *int) models.Team {
	t := models.Team{ID: id, CompetitionID: competitionID, Name: "Team", CaptainID: captainID}
	s.teams[id] = t
	return t
}

func (s *fakeStore) addRegistration(userID, competitionID, score int) models.UserCompetition {
	r := models.UserCompetition{
		ID:               s.id(),
		UserID:           userID,
		CompetitionID:    competitionID,
		Status:           models.RegistrationApproved,
		ProficiencyScore: score,
	}
	s.registrations[[2]int{userID, competitionID}] = r
	return r
}

// fakeTxManager выполняет функцию "транзакции" над общим хранилищем и
// откатывает все изменения, если она вернула ошибку.
type fakeTxManager struct {
	store *fakeStore
}

func (m *fakeTxManager) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	snap := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// --- Репозитории ---

type fakePhaseRepo struct{ s *fakeStore }

func (r *fakePhaseRepo) Create(_ context.Context, phase *models.CompetitionPhase) error {
	if err := r.s.fail("phase.create"); err != nil {
		return err
	}
	phase.ID = r.s.id()
	phase.CreatedAt = r.s.clock
	r.s.phases[phase.ID] = *phase
	return nil
}

func (r *fakePhaseRepo) GetByID(_ context.Context, id int) (*models.CompetitionPhase, error) {
	p, ok := r.s.phases[id]
	if !ok {
		return nil, repositories.ErrPhaseNotFound
	}
	cp := p
	return &cp, nil
}

func (r *fakePhaseRepo) ListByCompetition(_ context.Context, competitionID int) ([]models.CompetitionPhase, error) {
	var out []models.CompetitionPhase
	for _, p := range r.s.phases {
		if p.CompetitionID == competitionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePhaseRepo) Update(_ context.Context, phase *models.CompetitionPhase) error {
	if _, ok := r.s.phases[phase.ID]; !ok {
		return repositories.ErrPhaseNotFound
	}
	r.s.phases[phase.ID] = *phase
	return nil
}

func (r *fakePhaseRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.PhaseStatus) error {
	if err := r.s.fail("phase.updateStatus"); err != nil {
		return err
	}
	p, ok := r.s.phases[id]
	if !ok {
		return repositories.ErrPhaseNotFound
	}
	p.Status = status
	r.s.phases[id] = p
	return nil
}

func (r *fakePhaseRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.s.phases[id]; !ok {
		return repositories.ErrPhaseNotFound
	}
	delete(r.s.phases, id)
	return nil
}

func (r *fakePhaseRepo) ListForStatusRefresh(_ context.Context, currentTime time.Time) ([]models.CompetitionPhase, error) {
	var out []models.CompetitionPhase
	for _, p := range r.s.phases {
		switch {
		case p.Status == models.PhasePending && !p.StartDate.After(currentTime):
			out = append(out, p)
		case p.Status == models.PhaseInProgress && p.EndDate.Before(currentTime):
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCompetitionRepo struct{ s *fakeStore }

func (r *fakeCompetitionRepo) Create(_ context.Context, competition *models.Competition) error {
	competition.ID = r.s.id()
	r.s.competitions[competition.ID] = *competition
	return nil
}

func (r *fakeCompetitionRepo) GetByID(_ context.Context, id int) (*models.Competition, error) {
	c, ok := r.s.competitions[id]
	if !ok {
		return nil, repositories.ErrCompetitionNotFound
	}
	cp := c
	return &cp, nil
}

func (r *fakeCompetitionRepo) List(_ context.Context, _, _ int) ([]models.Competition, error) {
	var out []models.Competition
	for _, c := range r.s.competitions {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCompetitionRepo) Update(_ context.Context, competition *models.Competition) error {
	if _, ok := r.s.competitions[competition.ID]; !ok {
		return repositories.ErrCompetitionNotFound
	}
	r.s.competitions[competition.ID] = *competition
	return nil
}

func (r *fakeCompetitionRepo) UpdateStatus(_ context.Context, id int, status models.CompetitionStatus) error {
	c, ok := r.s.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	c.Status = status
	r.s.competitions[id] = c
	return nil
}

func (r *fakeCompetitionRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	c, ok := r.s.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	c.LogoKey = logoKey
	r.s.competitions[id] = c
	return nil
}

func (r *fakeCompetitionRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.s.competitions[id]; !ok {
		return repositories.ErrCompetitionNotFound
	}
	delete(r.s.competitions, id)
	return nil
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	user.ID = r.s.id()
	r.s.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range r.s.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (r *fakeUserRepo) UpdateTeamID(_ context.Context, _ repositories.SQLExecutor, userID int, teamID *int) error {
	u, ok := r.s.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.TeamID = teamID
	r.s.users[userID] = u
	return nil
}

// ListByTeam отдаёт участников в порядке возрастания id, как и SQL-реализация.
func (r *fakeUserRepo) ListByTeam(_ context.Context, _ repositories.SQLExecutor, teamID int) ([]models.User, error) {
	var out []models.User
	for id := 0; id <= r.s.nextID; id++ {
		u, ok := r.s.users[id]
		if ok && u.TeamID != nil && *u.TeamID == teamID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.s.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(r.s.users, id)
	return nil
}

type fakeTeamRepo struct{ s *fakeStore }

func (r *fakeTeamRepo) Create(_ context.Context, team *models.Team) error {
	team.ID = r.s.id()
	r.s.teams[team.ID] = *team
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	t, ok := r.s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	cp := t
	return &cp, nil
}

func (r *fakeTeamRepo) ListByCompetition(_ context.Context, competitionID int) ([]models.Team, error) {
	var out []models.Team
	for _, t := range r.s.teams {
		if t.CompetitionID == competitionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) ListIDsByCompetition(_ context.Context, _ repositories.SQLExecutor, competitionID int) ([]int, error) {
	if err := r.s.fail("team.listIDs"); err != nil {
		return nil, err
	}
	var out []int
	for id, t := range r.s.teams {
		if t.CompetitionID == competitionID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, team *models.Team) error {
	if _, ok := r.s.teams[team.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	r.s.teams[team.ID] = *team
	return nil
}

func (r *fakeTeamRepo) UpdateCaptain(_ context.Context, _ repositories.SQLExecutor, teamID int, captainID *int) error {
	if err := r.s.fail("team.updateCaptain"); err != nil {
		return err
	}
	t, ok := r.s.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.CaptainID = captainID
	r.s.teams[teamID] = t
	return nil
}

func (r *fakeTeamRepo) ClearCaptainForPlayer(_ context.Context, _ repositories.SQLExecutor, competitionID, playerID int) error {
	if err := r.s.fail("team.clearCaptain"); err != nil {
		return err
	}
	for id, t := range r.s.teams {
		if t.CompetitionID == competitionID && t.CaptainID != nil && *t.CaptainID == playerID {
			t.CaptainID = nil
			r.s.teams[id] = t
		}
	}
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.s.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.s.teams, id)
	return nil
}

type fakeSelfScoreRepo struct{ s *fakeStore }

func (r *fakeSelfScoreRepo) Upsert(_ context.Context, score *models.PlayerSelfScore) error {
	if err := r.s.fail("selfScore.upsert"); err != nil {
		return err
	}
	for i := range r.s.selfScores {
		existing := &r.s.selfScores[i]
		if existing.UserID == score.UserID && existing.PhaseID == score.PhaseID {
			existing.Scores = score.Scores
			existing.UpdatedAt = r.s.clock
			*score = *existing
			return nil
		}
	}
	score.ID = r.s.id()
	score.CreatedAt = r.s.clock
	score.UpdatedAt = r.s.clock
	r.s.selfScores = append(r.s.selfScores, *score)
	return nil
}

func (r *fakeSelfScoreRepo) ListByUserAndCompetition(_ context.Context, userID, competitionID int) ([]models.PlayerSelfScore, error) {
	var out []models.PlayerSelfScore
	for _, rec := range r.s.selfScores {
		if rec.UserID == userID && rec.CompetitionID == competitionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeSelfScoreRepo) DeleteByUserAndCompetition(_ context.Context, _ repositories.SQLExecutor, userID, competitionID int) error {
	if err := r.s.fail("selfScore.delete"); err != nil {
		return err
	}
	kept := r.s.selfScores[:0]
	for _, rec := range r.s.selfScores {
		if !(rec.UserID == userID && rec.CompetitionID == competitionID) {
			kept = append(kept, rec)
		}
	}
	r.s.selfScores = append([]models.PlayerSelfScore(nil), kept...)
	return nil
}

type fakeRatingRepo struct{ s *fakeStore }

func (r *fakeRatingRepo) Upsert(_ context.Context, rating *models.PlayerRating) error {
	if err := r.s.fail("rating.upsert"); err != nil {
		return err
	}
	for i := range r.s.ratings {
		existing := &r.s.ratings[i]
		if existing.RaterID == rating.RaterID && existing.RatedID == rating.RatedID && existing.PhaseID == rating.PhaseID {
			existing.Scores = rating.Scores
			existing.UpdatedAt = r.s.clock
			*rating = *existing
			return nil
		}
	}
	rating.ID = r.s.id()
	rating.CreatedAt = r.s.clock
	rating.UpdatedAt = r.s.clock
	r.s.ratings = append(r.s.ratings, *rating)
	return nil
}

func (r *fakeRatingRepo) ListByRatedAndCompetition(_ context.Context, ratedID, competitionID int) ([]models.PlayerRating, error) {
	var out []models.PlayerRating
	for _, rec := range r.s.ratings {
		if rec.RatedID == ratedID && rec.CompetitionID == competitionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRatingRepo) DeleteByRaterAndCompetition(_ context.Context, _ repositories.SQLExecutor, raterID, competitionID int) error {
	if err := r.s.fail("rating.deleteByRater"); err != nil {
		return err
	}
	kept := r.s.ratings[:0]
	for _, rec := range r.s.ratings {
		if !(rec.RaterID == raterID && rec.CompetitionID == competitionID) {
			kept = append(kept, rec)
		}
	}
	r.s.ratings = append([]models.PlayerRating(nil), kept...)
	return nil
}

func (r *fakeRatingRepo) DeleteByRatedAndCompetition(_ context.Context, _ repositories.SQLExecutor, ratedID, competitionID int) error {
	if err := r.s.fail("rating.deleteByRated"); err != nil {
		return err
	}
	kept := r.s.ratings[:0]
	for _, rec := range r.s.ratings {
		if !(rec.RatedID == ratedID && rec.CompetitionID == competitionID) {
			kept = append(kept, rec)
		}
	}
	r.s.ratings = append([]models.PlayerRating(nil), kept...)
	return nil
}

type fakeCaptainVoteRepo struct{ s *fakeStore }

func (r *fakeCaptainVoteRepo) Upsert(_ context.Context, vote *models.CaptainVote) error {
	if err := r.s.fail("vote.upsert"); err != nil {
		return err
	}
	for i := range r.s.votes {
		existing := &r.s.votes[i]
		if existing.VoterID == vote.VoterID && existing.PhaseID == vote.PhaseID && existing.TeamID == vote.TeamID {
			existing.CaptainID = vote.CaptainID
			existing.UpdatedAt = r.s.clock
			*vote = *existing
			return nil
		}
	}
	vote.ID = r.s.id()
	vote.CreatedAt = r.s.clock
	vote.UpdatedAt = r.s.clock
	r.s.votes = append(r.s.votes, *vote)
	return nil
}

func (r *fakeCaptainVoteRepo) ListByTeam(_ context.Context, teamID int) ([]models.CaptainVote, error) {
	var out []models.CaptainVote
	for _, v := range r.s.votes {
		if v.TeamID == teamID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeCaptainVoteRepo) DeleteByTeam(_ context.Context, _ repositories.SQLExecutor, teamID int) error {
	if err := r.s.fail("vote.deleteByTeam"); err != nil {
		return err
	}
	kept := r.s.votes[:0]
	for _, v := range r.s.votes {
		if v.TeamID != teamID {
			kept = append(kept, v)
		}
	}
	r.s.votes = append([]models.CaptainVote(nil), kept...)
	return nil
}

func (r *fakeCaptainVoteRepo) DeleteByVoterInTeams(_ context.Context, _ repositories.SQLExecutor, voterID int, teamIDs []int) error {
	if err := r.s.fail("vote.deleteByVoter"); err != nil {
		return err
	}
	inSet := make(map[int]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		inSet[id] = struct{}{}
	}
	kept := r.s.votes[:0]
	for _, v := range r.s.votes {
		if _, ok := inSet[v.TeamID]; ok && v.VoterID == voterID {
			continue
		}
		kept = append(kept, v)
	}
	r.s.votes = append([]models.CaptainVote(nil), kept...)
	return nil
}

func (r *fakeCaptainVoteRepo) DeleteByCaptainInTeams(_ context.Context, _ repositories.SQLExecutor, captainID int, teamIDs []int) error {
	if err := r.s.fail("vote.deleteByCaptain"); err != nil {
		return err
	}
	inSet := make(map[int]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		inSet[id] = struct{}{}
	}
	kept := r.s.votes[:0]
	for _, v := range r.s.votes {
		if _, ok := inSet[v.TeamID]; ok && v.CaptainID == captainID {
			continue
		}
		kept = append(kept, v)
	}
	r.s.votes = append([]models.CaptainVote(nil), kept...)
	return nil
}

type fakeRegistrationRepo struct{ s *fakeStore }

func (r *fakeRegistrationRepo) Create(_ context.Context, registration *models.UserCompetition) error {
	key := [2]int{registration.UserID, registration.CompetitionID}
	if _, ok := r.s.registrations[key]; ok {
		return repositories.ErrRegistrationConflict
	}
	registration.ID = r.s.id()
	registration.CreatedAt = r.s.clock
	registration.UpdatedAt = r.s.clock
	r.s.registrations[key] = *registration
	return nil
}

func (r *fakeRegistrationRepo) GetByUserAndCompetition(_ context.Context, userID, competitionID int) (*models.UserCompetition, error) {
	reg, ok := r.s.registrations[[2]int{userID, competitionID}]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	cp := reg
	return &cp, nil
}

func (r *fakeRegistrationRepo) ListByCompetition(_ context.Context, competitionID int) ([]models.UserCompetition, error) {
	var out []models.UserCompetition
	for _, reg := range r.s.registrations {
		if reg.CompetitionID == competitionID {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r *fakeRegistrationRepo) UpdateStatus(_ context.Context, userID, competitionID int, status models.RegistrationStatus) error {
	key := [2]int{userID, competitionID}
	reg, ok := r.s.registrations[key]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = status
	reg.UpdatedAt = r.s.clock
	r.s.registrations[key] = reg
	return nil
}

func (r *fakeRegistrationRepo) UpdateProficiency(_ context.Context, userID, competitionID, score int, proficiencies map[string]float64) error {
	key := [2]int{userID, competitionID}
	reg, ok := r.s.registrations[key]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.ProficiencyScore = score
	reg.Proficiencies = proficiencies
	reg.UpdatedAt = r.s.clock
	r.s.registrations[key] = reg
	return nil
}

func (r *fakeRegistrationRepo) Delete(_ context.Context, _ repositories.SQLExecutor, userID, competitionID int) error {
	if err := r.s.fail("registration.delete"); err != nil {
		return err
	}
	key := [2]int{userID, competitionID}
	if _, ok := r.s.registrations[key]; !ok {
		return repositories.ErrRegistrationNotFound
	}
	delete(r.s.registrations, key)
	return nil
}

// recordingBroadcaster запоминает рассылки вместо сети.
type recordingBroadcaster struct {
	rooms    []string
	messages []interface{}
}

func (b *recordingBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	b.rooms = append(b.rooms, roomID)
	b.messages = append(b.messages, message)
}
