package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) routes() *gin.Engine {
	registerValidators()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleStatusPage)
	r.GET("/join", s.handleJoinPage)
	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/join", s.handleJoin)

		player := api.Group("/rooms/:roomID")
		{
			player.GET("", s.handleRoomSnapshot)
			player.POST("/leave", s.handleLeave)
			player.POST("/ready", s.handleReady)
			player.POST("/guesses", s.handleGuess)
			player.GET("/puzzle", s.handleTeamPuzzle)
			player.GET("/state", s.handleGameState)
			player.GET("/leaderboard", s.handleLeaderboard)
			player.GET("/rounds", s.handleRoundHistory)
			player.GET("/rounds/:number", s.handleRoundResults)
			player.GET("/rounds/:number/stats", s.handleRoundStats)
			player.GET("/qr.png", s.handleJoinQR)
		}

		admin := api.Group("")
		admin.Use(s.requireAdmin())
		{
			admin.POST("/rooms", s.handleCreateRoom)
			admin.GET("/rooms", s.handleListRooms)
			admin.PATCH("/rooms/:roomID", s.handleRenameRoom)
			admin.DELETE("/rooms/:roomID", s.handleDeleteRoom)
			admin.DELETE("/rooms/:roomID/participants/:participantID", s.handleKick)
			admin.POST("/rooms/:roomID/teams", s.handleAssignTeams)
			admin.POST("/rooms/:roomID/teams/add", s.handleAddTeam)
			admin.PATCH("/rooms/:roomID/teams/:teamID", s.handleRenameTeam)
			admin.GET("/rooms/:roomID/teams/:teamID/puzzle", s.handleOperatorPuzzle)
			admin.PUT("/rooms/:roomID/teams/:teamID/participants/:participantID", s.handleMoveParticipant)
			admin.POST("/rooms/:roomID/rounds", s.handleStartRound)
			admin.POST("/rooms/:roomID/rounds/end", s.handleEndRound)
			admin.GET("/rooms/:roomID/results.xlsx", s.handleExportResults)
			admin.GET("/rooms/:roomID/events", s.handleEvents)
		}
	}

	r.GET("/ws/rooms/:roomID", s.handleParticipantWebsocket)
	r.GET("/ws/observer", s.handleObserverWebsocket)
	return r
}
