package models

import "time"

// CompetitionStatus представляет статусы соревнования, соответствующие ENUM в БД.
type CompetitionStatus string

const (
	CompetitionUpcoming CompetitionStatus = "upcoming"
	CompetitionActive   CompetitionStatus = "active"
	CompetitionInactive CompetitionStatus = "inactive"
)

// Competition представляет сезонное соревнование.
// Одновременно ожидается одно активное соревнование, но ядро это не форсирует.
type Competition struct {
	ID        int               `json:"id" db:"id"`
	Name      string            `json:"name" db:"name"`
	Year      int               `json:"year" db:"year"`
	Status    CompetitionStatus `json:"status" db:"status"`
	StartDate time.Time         `json:"start_date" db:"start_date"`
	EndDate   time.Time         `json:"end_date" db:"end_date"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	LogoKey   *string           `json:"-" db:"logo_key"`
	LogoURL   *string           `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Phases []CompetitionPhase `json:"phases,omitempty" db:"-"`
}
