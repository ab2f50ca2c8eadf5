package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/middleware"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/repos"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/services"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

type PostHandler struct {
	log      *logger.Logger
	sessions services.SessionManager
	workflow services.GenerationWorkflowService
	profiles services.ProfileService
	postRepo repos.PostRepo
}

func NewPostHandler(log *logger.Logger, sessions services.SessionManager, workflow services.GenerationWorkflowService, profiles services.ProfileService, postRepo repos.PostRepo) *PostHandler {
	return &PostHandler{
		log:      log.With("handler", "PostHandler"),
		sessions: sessions,
		workflow: workflow,
		profiles: profiles,
		postRepo: postRepo,
	}
}

type generatePostRequest struct {
	Topic           string `json:"topic" binding:"required"`
	Tone            string `json:"tone"`
	Audience        string `json:"audience"`
	Framework       string `json:"framework"`
	Length          string `json:"length"`
	CreativityLevel int    `json:"creativity_level"`
	EmojiDensity    string `json:"emoji_density"`
	IncludeCTA      bool   `json:"include_cta"`
}

// Generate runs one manual generation: execute the workflow, append to the
// session history, publish the replacement snapshot, then sync in the
// background. A failed sync only warns; the generation already succeeded.
func (ph *PostHandler) Generate(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := ph.sessions.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	var req generatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := types.GenerationParams{
		Topic:           req.Topic,
		Tone:            req.Tone,
		Audience:        req.Audience,
		Framework:       req.Framework,
		Length:          req.Length,
		CreativityLevel: req.CreativityLevel,
		EmojiDensity:    req.EmojiDensity,
		IncludeCTA:      req.IncludeCTA,
	}

	snapshot := session.State.Snapshot()
	result, err := ph.workflow.Execute(c.Request.Context(), snapshot, params, session.History.List(), false)
	if err != nil {
		respondError(c, err)
		return
	}

	session.History.Add(result.Post)
	session.History.SetSelected(result.Post.ID)
	session.State.Publish(result.UpdatedProfile)
	ph.profiles.SyncAsync(userID, services.SyncFieldsFromProfile(result.UpdatedProfile), nil)

	c.JSON(http.StatusOK, gin.H{
		"post":        result.Post,
		"profile":     result.UpdatedProfile,
		"progression": result.Progression,
	})
}

func (ph *PostHandler) List(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := ph.sessions.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": session.History.List()})
}

func (ph *PostHandler) Delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := ph.sessions.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	if err := ph.postRepo.DeleteByID(c.Request.Context(), nil, postID); err != nil {
		respondError(c, err)
		return
	}
	session.History.Remove(postID)

	c.JSON(http.StatusOK, gin.H{"deleted": postID})
}
