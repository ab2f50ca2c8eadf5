package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/middleware"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/services"
)

type ProfileHandler struct {
	sessions services.SessionManager
}

func NewProfileHandler(sessions services.SessionManager) *ProfileHandler {
	return &ProfileHandler{sessions: sessions}
}

func (ph *ProfileHandler) GetMe(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := ph.sessions.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": session.State.Snapshot()})
}
