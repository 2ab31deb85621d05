package models

import "time"

// Team представляет команду внутри соревнования.
// CaptainID может быть NULL, пока капитан не выбран голосованием.
type Team struct {
	ID            int       `json:"id" db:"id"`
	CompetitionID int       `json:"competition_id" db:"competition_id"`
	Name          string    `json:"name" db:"name"`
	CaptainID     *int      `json:"captain_id,omitempty" db:"captain_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	// Состав команды в порядке вступления (по id пользователя).
	Members []User `json:"members,omitempty" db:"-"`
}
