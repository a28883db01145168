package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type bindMessages map[string]map[string]string

type roomURI struct {
	RoomID uint `uri:"roomID" binding:"required,min=1"`
}

type teamURI struct {
	RoomID uint `uri:"roomID" binding:"required,min=1"`
	TeamID uint `uri:"teamID" binding:"required,min=1"`
}

type participantURI struct {
	RoomID        uint `uri:"roomID" binding:"required,min=1"`
	ParticipantID uint `uri:"participantID" binding:"required,min=1"`
}

type moveURI struct {
	RoomID        uint `uri:"roomID" binding:"required,min=1"`
	TeamID        uint `uri:"teamID"`
	ParticipantID uint `uri:"participantID" binding:"required,min=1"`
}

type roundURI struct {
	RoomID uint `uri:"roomID" binding:"required,min=1"`
	Number int  `uri:"number" binding:"required,min=1"`
}

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, fallback)})
		return false
	}
	return true
}

func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}
