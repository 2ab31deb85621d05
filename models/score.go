package models

import "time"

// ScoreCard хранит оценки по категориям навыков, каждая в диапазоне 1–5.
// В БД хранится как JSONB.
type ScoreCard map[string]int

// Mean возвращает среднее по всем категориям карточки.
// Вторым значением сообщает, были ли категории вообще.
func (s ScoreCard) Mean() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	sum := 0
	for _, v := range s {
		sum += v
	}
	return float64(sum) / float64(len(s)), true
}

// PlayerSelfScore представляет самооценку игрока в рамках фазы player_scoring.
// Не более одной записи на (user_id, phase_id): повторная отправка перезаписывает.
type PlayerSelfScore struct {
	ID            int       `json:"id" db:"id"`
	UserID        int       `json:"user_id" db:"user_id"`
	CompetitionID int       `json:"competition_id" db:"competition_id"`
	PhaseID       int       `json:"phase_id" db:"phase_id"`
	Scores        ScoreCard `json:"scores" db:"scores"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PlayerRating представляет оценку одного игрока другим.
// Не более одной записи на (rater_id, rated_id, phase_id).
type PlayerRating struct {
	ID            int       `json:"id" db:"id"`
	RaterID       int       `json:"rater_id" db:"rater_id"`
	RatedID       int       `json:"rated_id" db:"rated_id"`
	CompetitionID int       `json:"competition_id" db:"competition_id"`
	PhaseID       int       `json:"phase_id" db:"phase_id"`
	Scores        ScoreCard `json:"scores" db:"scores"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
