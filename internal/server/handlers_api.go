package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	Name string `json:"name" binding:"omitempty,max=48"`
}

type renameRoomRequest struct {
	Name string `json:"name" binding:"required,max=48"`
}

type joinRequest struct {
	Code         string `json:"code" binding:"required,len=6"`
	Name         string `json:"name" binding:"omitempty,name"`
	SessionToken string `json:"session_token"`
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

type assignTeamsRequest struct {
	Count int `json:"count" binding:"required,min=1"`
}

type addTeamRequest struct {
	Name string `json:"name" binding:"omitempty,teamname"`
}

type renameTeamRequest struct {
	Name string `json:"name" binding:"required,teamname"`
}

type guessRequest struct {
	StepIndex *int   `json:"step_index" binding:"required,min=0"`
	Guess     string `json:"guess" binding:"required,guess"`
}

var (
	joinMessages = bindMessages{
		"Code": {"required": "room code is required", "len": "room code must be 6 characters"},
		"Name": {"name": "name must be 1-24 letters, numbers, or simple punctuation"},
	}
	teamMessages = bindMessages{
		"Count": {"required": "count is required", "min": "count must be at least 1"},
		"Name":  {"required": "team name is required", "teamname": "team name must be 1-32 letters, numbers, or simple punctuation"},
	}
	guessMessages = bindMessages{
		"StepIndex": {"required": "step_index is required", "min": "step_index must not be negative"},
		"Guess":     {"required": "guess is required", "guess": "guess must be 1-40 letters"},
	}
	startMessages = bindMessages{
		"Difficulty":    {"required": "difficulty is required", "oneof": "difficulty must be easy, medium, or hard"},
		"PuzzleMode":    {"oneof": "puzzle_mode must be same or different"},
		"WordCountMode": {"oneof": "word_count_mode must be exact or balanced"},
		"TimerSeconds":  {"min": "timer_seconds must not be negative", "max": "timer_seconds must be at most 3600"},
	}
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "puzzles": s.puzzles.Len()})
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req, nil, "invalid room name") {
		return
	}
	room, err := s.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room, "join_url": s.JoinURL(room.Code)})
}

func (s *Server) handleListRooms(c *gin.Context) {
	rooms, err := s.ListRooms(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (s *Server) handleRoomSnapshot(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	snap, err := s.RoomSnapshot(c.Request.Context(), uri.RoomID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleRenameRoom(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req renameRoomRequest
	if !bindJSON(c, &req, nil, "room name is required") {
		return
	}
	room, err := s.RenameRoom(c.Request.Context(), uri.RoomID, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (s *Server) handleDeleteRoom(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.DeleteRoom(c.Request.Context(), uri.RoomID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleJoin(c *gin.Context) {
	var req joinRequest
	if !bindJSON(c, &req, joinMessages, "") {
		return
	}
	if req.SessionToken == "" {
		req.SessionToken = sessionToken(c)
	}
	result, err := s.JoinRoom(c.Request.Context(), req.Code, req.Name, req.SessionToken)
	if err != nil {
		s.respondError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Rejoined {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (s *Server) handleLeave(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.LeaveRoom(c.Request.Context(), uri.RoomID, sessionToken(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReady(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req readyRequest
	if !bindJSON(c, &req, nil, "") {
		return
	}
	view, err := s.SetReady(c.Request.Context(), uri.RoomID, sessionToken(c), req.Ready)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": view})
}

func (s *Server) handleKick(c *gin.Context) {
	var uri participantURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.KickParticipant(c.Request.Context(), uri.RoomID, uri.ParticipantID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAssignTeams(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req assignTeamsRequest
	if !bindJSON(c, &req, teamMessages, "") {
		return
	}
	teams, err := s.AssignTeams(c.Request.Context(), uri.RoomID, req.Count)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"teams": teams})
}

func (s *Server) handleAddTeam(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req addTeamRequest
	if !bindJSON(c, &req, teamMessages, "") {
		return
	}
	team, err := s.AddTeam(c.Request.Context(), uri.RoomID, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"team": team})
}

func (s *Server) handleRenameTeam(c *gin.Context) {
	var uri teamURI
	if !bindURI(c, &uri) {
		return
	}
	var req renameTeamRequest
	if !bindJSON(c, &req, teamMessages, "") {
		return
	}
	team, err := s.RenameTeam(c.Request.Context(), uri.RoomID, uri.TeamID, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": team})
}

func (s *Server) handleMoveParticipant(c *gin.Context) {
	var uri moveURI
	if !bindURI(c, &uri) {
		return
	}
	view, err := s.MoveParticipant(c.Request.Context(), uri.RoomID, uri.ParticipantID, uri.TeamID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant": view})
}

func (s *Server) handleStartRound(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req StartRequest
	if !bindJSON(c, &req, startMessages, "") {
		return
	}
	announcement, err := s.StartRound(c.Request.Context(), uri.RoomID, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, announcement)
}

func (s *Server) handleEndRound(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	ended, err := s.EndRound(c.Request.Context(), uri.RoomID, ReasonManual)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ended)
}

func (s *Server) handleGuess(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req guessRequest
	if !bindJSON(c, &req, guessMessages, "") {
		return
	}
	outcome, err := s.SubmitGuess(c.Request.Context(), GuessRequest{
		RoomID:       uri.RoomID,
		SessionToken: sessionToken(c),
		StepIndex:    *req.StepIndex,
		Text:         req.Guess,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleTeamPuzzle(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	view, err := s.TeamPuzzle(c.Request.Context(), uri.RoomID, sessionToken(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleOperatorPuzzle(c *gin.Context) {
	var uri teamURI
	if !bindURI(c, &uri) {
		return
	}
	view, err := s.OperatorPuzzle(c.Request.Context(), uri.RoomID, uri.TeamID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleGameState(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	state, err := s.GameState(c.Request.Context(), uri.RoomID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	board, err := s.Leaderboard(c.Request.Context(), uri.RoomID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (s *Server) handleRoundHistory(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	history, err := s.RoundHistory(c.Request.Context(), uri.RoomID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": history})
}

func (s *Server) handleRoundResults(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	results, err := s.RoundResults(c.Request.Context(), uri.RoomID, uri.Number)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleRoundStats(c *gin.Context) {
	var uri roundURI
	if !bindURI(c, &uri) {
		return
	}
	stats, err := s.RoundStats(c.Request.Context(), uri.RoomID, uri.Number)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleEvents(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	events, err := s.Events(c.Request.Context(), uri.RoomID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleExportResults(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	data, filename, err := s.ExportResults(c.Request.Context(), uri.RoomID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s *Server) handleJoinQR(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	png, err := s.JoinQRCode(c.Request.Context(), uri.RoomID, queryInt(c, "size", defaultQRSize))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
