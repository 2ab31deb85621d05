package models

import "time"

// RegistrationStatus представляет статусы заявки игрока на соревнование.
type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationApproved   RegistrationStatus = "approved"
)

// UserCompetition представляет регистрацию игрока в соревновании.
// Уникальна по (user_id, competition_id). ProficiencyScore кэширует результат синтеза
// самооценок и оценок коллег, НЕ источник истины для агрегации.
type UserCompetition struct {
	ID               int                `json:"id" db:"id"`
	UserID           int                `json:"user_id" db:"user_id"`
	CompetitionID    int                `json:"competition_id" db:"competition_id"`
	Status           RegistrationStatus `json:"status" db:"status"`
	ProficiencyScore int                `json:"proficiency_score" db:"proficiency_score"`
	Proficiencies    map[string]float64 `json:"proficiencies,omitempty" db:"proficiencies"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}
