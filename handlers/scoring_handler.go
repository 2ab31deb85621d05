package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Olzhas11/competition-platform/middleware"
	"github.com/Olzhas11/competition-platform/models"
	"github.com/Olzhas11/competition-platform/services"
)

type ScoringHandler struct {
	scoringService *services.ScoringService
}

func NewScoringHandler(ss *services.ScoringService) *ScoringHandler {
	return &ScoringHandler{scoringService: ss}
}

type selfScoreInput struct {
	PhaseID int              `json:"phase_id"`
	Scores  models.ScoreCard `json:"scores"`
}

// SubmitSelfScore сохраняет самооценку текущего пользователя.
// Только владелец может отправить собственную самооценку.
func (h *ScoringHandler) SubmitSelfScore(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input selfScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.scoringService.UpsertSelfScore(r.Context(), currentUserID, competitionID, input.PhaseID, input.Scores)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"self_score": score}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type peerRatingInput struct {
	RatedID int              `json:"rated_id"`
	PhaseID int              `json:"phase_id"`
	Scores  models.ScoreCard `json:"scores"`
}

func (h *ScoringHandler) SubmitPeerRating(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input peerRatingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.RatedID <= 0 {
		badRequestResponse(w, r, errors.New("rated_id is required"))
		return
	}

	rating, err := h.scoringService.UpsertPeerRating(r.Context(), currentUserID, input.RatedID, competitionID, input.PhaseID, input.Scores)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rating": rating}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetProficiency считает синтезированный балл игрока на момент запроса.
// Необязательный query-параметр fallback подставляется при полном
// отсутствии записей.
func (h *ScoringHandler) GetProficiency(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	fallback, _ := strconv.Atoi(r.URL.Query().Get("fallback"))

	score, err := h.scoringService.ComputeProficiency(r.Context(), userID, competitionID, fallback)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"user_id":           userID,
		"competition_id":    competitionID,
		"proficiency_score": score,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CommitProficiency пересчитывает балл и записывает его в кэш регистрации.
func (h *ScoringHandler) CommitProficiency(w http.ResponseWriter, r *http.Request) {
	competitionID, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	score, err := h.scoringService.CommitProficiency(r.Context(), userID, competitionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"user_id":           userID,
		"competition_id":    competitionID,
		"proficiency_score": score,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
