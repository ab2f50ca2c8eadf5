package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/middleware"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/services"
)

type SessionHandler struct {
	sessions services.SessionManager
}

func NewSessionHandler(sessions services.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Start builds (or returns) the caller's engine session. Startup recovery
// runs inside GetOrCreate, so a post lost to a client crash shows up here.
func (sh *SessionHandler) Start(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	session, err := sh.sessions.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"profile": session.State.Snapshot(),
		"posts":   session.History.List(),
	}
	if session.RecoveredPost != nil {
		resp["recovered_post"] = session.RecoveredPost
	}
	c.JSON(http.StatusOK, resp)
}
