package server

import (
	"net/http"

	"ladder-league/internal/web"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleStatusPage(c *gin.Context) {
	rooms, err := s.ListRooms(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	data := web.StatusData{
		Service:   "Ladder League",
		Puzzles:   s.puzzles.Len(),
		Rooms:     make([]web.RoomRow, 0, len(rooms)),
		Generated: s.now(),
	}
	for _, room := range rooms {
		data.Rooms = append(data.Rooms, web.RoomRow{
			ID:           room.ID,
			Code:         room.Code,
			Name:         room.Name,
			Participants: room.Participants,
			Teams:        room.Teams,
			Connected:    room.Connected,
			RoundActive:  room.RoundActive,
		})
	}
	render(c, http.StatusOK, web.Status(data))
}

func (s *Server) handleJoinPage(c *gin.Context) {
	render(c, http.StatusOK, web.Join(normalizeRoomCode(c.Query("code"))))
}

func render(c *gin.Context, status int, component templ.Component) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(c.Request.Context(), c.Writer); err != nil {
		_ = c.Error(err)
	}
}
