package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Olzhas11/competition-platform/live"
	"github.com/Olzhas11/competition-platform/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: ограничить список разрешённых origin перед продакшеном.
		return true
	},
}

type WebSocketHandler struct {
	hub           *live.Hub
	votingService *services.VotingService
	logger        *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, vs *services.VotingService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		votingService: vs,
		logger:        logger,
	}
}

// ServeTeamVotes подключает клиента к комнате команды. Сразу после
// подключения клиент получает текущие итоги голосования, дальше только
// обновления после каждого голоса или сброса.
func (h *WebSocketHandler) ServeTeamVotes(w http.ResponseWriter, r *http.Request) {
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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Int("teamID", teamID), slog.Any("error", err))
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: services.TeamRoomID(teamID),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.hub.BroadcastToRoom(client.Room, map[string]interface{}{
		"type":  "captain_vote_tally",
		"tally": tally,
	})
}
