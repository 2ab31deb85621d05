package handlers

import (
	"errors"
	"net/http"

	"github.com/Olzhas11/competition-platform/middleware"
	"github.com/Olzhas11/competition-platform/services"
)

type VotingHandler struct {
	votingService *services.VotingService
}

func NewVotingHandler(vs *services.VotingService) *VotingHandler {
	return &VotingHandler{votingService: vs}
}

type castVoteInput struct {
	CaptainID int `json:"captain_id"`
	PhaseID   int `json:"phase_id"`
}

// CastVote регистрирует голос текущего пользователя за капитана.
// Повторный голос в той же фазе перезаписывает предыдущий выбор.
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	voterID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input castVoteInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.CaptainID <= 0 {
		badRequestResponse(w, r, errors.New("captain_id is required"))
		return
	}

	vote, err := h.votingService.CastCaptainVote(r.Context(), voterID, input.CaptainID, teamID, input.PhaseID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"vote": vote}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *VotingHandler) GetTally(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tally, err := h.votingService.TallyCaptainVotes(r.Context(), teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tally": tally}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResetVoting удаляет все голоса команды и снимает капитана. Только админ.
func (h *VotingHandler) ResetVoting(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.votingService.ResetCaptainVoting(r.Context(), teamID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "captain voting reset"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
