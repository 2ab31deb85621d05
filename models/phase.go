package models

import "time"

// PhaseType определяет, какие действия допустимы во время фазы.
type PhaseType string

const (
	PhaseRegistration  PhaseType = "registration"
	PhaseTeamFormation PhaseType = "team_formation"
	PhaseCaptainVoting PhaseType = "captain_voting"
	PhasePlayerScoring PhaseType = "player_scoring"
	PhaseCompetition   PhaseType = "competition"
	PhaseAwards        PhaseType = "awards"
)

// PhaseStatus представляет производный статус фазы. Хранится для быстрых чтений,
// но всегда восстановим из (start_date, end_date, now).
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in-progress"
	PhaseCompleted  PhaseStatus = "completed"
)

// CompetitionPhase представляет ограниченную по времени стадию соревнования.
// Инвариант: StartDate <= EndDate.
type CompetitionPhase struct {
	ID            int         `json:"id" db:"id"`
	CompetitionID int         `json:"competition_id" db:"competition_id"`
	Name          string      `json:"name" db:"name"`
	Description   *string     `json:"description,omitempty" db:"description"`
	Type          PhaseType   `json:"type" db:"type"`
	Order         int         `json:"order" db:"position"` // "order" зарезервировано в SQL, колонка называется position
	StartDate     time.Time   `json:"start_date" db:"start_date"`
	EndDate       time.Time   `json:"end_date" db:"end_date"`
	Status        PhaseStatus `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}
