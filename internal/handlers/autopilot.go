package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/middleware"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/services"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

type AutopilotHandler struct {
	sessions services.SessionManager
	profiles services.ProfileService
}

func NewAutopilotHandler(sessions services.SessionManager, profiles services.ProfileService) *AutopilotHandler {
	return &AutopilotHandler{sessions: sessions, profiles: profiles}
}

// UpdateConfig replaces the recurrence configuration. NextRun is recomputed
// by the scheduler, which is kicked immediately so a fresh enablement does
// not wait for the next poll.
func (ah *AutopilotHandler) UpdateConfig(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := ah.sessions.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	var cfg types.AutoPilotConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := services.ValidateAutoPilotConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A config change resets the schedule; the scheduler recomputes it.
	cfg.NextRun = nil

	snapshot := session.State.Snapshot()
	snapshot.AutoPilot = datatypes.NewJSONType(cfg)
	session.State.Publish(snapshot)
	session.Scheduler.ConfigChanged()

	if err := ah.profiles.UpdateProfile(c.Request.Context(), userID, map[string]interface{}{"auto_pilot": snapshot.AutoPilot}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auto_pilot": cfg})
}

func (ah *AutopilotHandler) GetConfig(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := ah.sessions.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auto_pilot": session.State.Snapshot().AutoPilot.Data()})
}
