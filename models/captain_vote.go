package models

import "time"

// CaptainVote представляет голос участника команды за предпочитаемого капитана.
// Не более одной записи на (voter_id, phase_id, team_id): повторный голос
// заменяет выбор капитана, а не добавляет новый.
type CaptainVote struct {
	ID            int       `json:"id" db:"id"`
	VoterID       int       `json:"voter_id" db:"voter_id"`
	CaptainID     int       `json:"captain_id" db:"captain_id"`
	TeamID        int       `json:"team_id" db:"team_id"`
	CompetitionID int       `json:"competition_id" db:"competition_id"`
	PhaseID       int       `json:"phase_id" db:"phase_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// CandidateVotes хранит количество голосов за одного кандидата.
type CandidateVotes struct {
	CaptainID int `json:"captain_id"`
	Votes     int `json:"votes"`
}

// CaptainVoteTally представляет агрегированный результат голосования по команде.
type CaptainVoteTally struct {
	TeamID           int              `json:"team_id"`
	PerCandidate     []CandidateVotes `json:"per_candidate"`
	TotalVotes       int              `json:"total_votes"`
	TotalMembers     int              `json:"total_members"`
	VotersDistinct   int              `json:"voters_distinct"`
	VotingPercentage int              `json:"voting_percentage"`
}
