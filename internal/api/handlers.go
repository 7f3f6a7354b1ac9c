package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"responsa/internal/archive/feedback"
	"responsa/internal/archive/search"
	"responsa/internal/models"
	"responsa/internal/store"
	"responsa/pkg/logger"
)

// AnswerLinker runs the Q&A linker on one persisted answer.
type AnswerLinker interface {
	Link(ctx context.Context, answer *models.Entry, replyToID, contextHint string) (models.LinkDecision, error)
}

// Invalidator forces the vector cache to rebuild.
type Invalidator interface {
	Invalidate()
}

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// Handler provides the HTTP handlers of the archive service.
type Handler struct {
	search   *search.Service
	feedback *feedback.Service
	linker   AnswerLinker
	entries  store.EntryStore
	audio    *store.AudioStore
	cache    Invalidator
	checks   map[string]HealthCheck
	logger   *logger.Logger
}

// NewHandler creates the handler set.
func NewHandler(search *search.Service, feedback *feedback.Service, linker AnswerLinker, entries store.EntryStore, audio *store.AudioStore, cache Invalidator, checks map[string]HealthCheck, logger *logger.Logger) *Handler {
	return &Handler{
		search:   search,
		feedback: feedback,
		linker:   linker,
		entries:  entries,
		audio:    audio,
		cache:    cache,
		checks:   checks,
		logger:   logger,
	}
}

// SearchHandler answers GET /search?q=...&limit=N. Rejected queries are 200s
// with a structured reason; only transport problems are errors.
func (h *Handler) SearchHandler(c *gin.Context) {
	query := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	resp := h.search.Search(c.Request.Context(), query, limit)
	c.JSON(http.StatusOK, resp)
}

// CreateQuestionHandler persists a new question entry.
func (h *Handler) CreateQuestionHandler(c *gin.Context) {
	var payload struct {
		GroupID string `json:"group_id" binding:"required"`
		Sender  string `json:"sender"`
		Text    string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid question payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	entry := &models.Entry{
		ID:        uuid.NewString(),
		GroupID:   payload.GroupID,
		Sender:    payload.Sender,
		Timestamp: time.Now().UTC(),
		Text:      payload.Text,
	}
	if err := h.entries.Create(c.Request.Context(), entry); err != nil {
		h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to create question")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": entry.ID})
}

// GetEntryHandler returns one entry by id.
func (h *Handler) GetEntryHandler(c *gin.Context) {
	entry, err := h.entries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve entry"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// UpdateEntryHandler edits the text or transcript of an entry. Content edits
// clear the embedding flag; the reindexer recomputes the vector.
func (h *Handler) UpdateEntryHandler(c *gin.Context) {
	var payload struct {
		Text            *string `json:"text"`
		TranscriptRaw   *string `json:"transcript_raw"`
		TranscriptClean *string `json:"transcript_clean"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if payload.Text == nil && payload.TranscriptRaw == nil && payload.TranscriptClean == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	entry, err := h.entries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve entry"})
		return
	}

	if payload.Text != nil {
		if err := h.entries.UpdateText(c.Request.Context(), entry.ID, *payload.Text); err != nil {
			h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to update text")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update entry"})
			return
		}
	}
	if payload.TranscriptRaw != nil || payload.TranscriptClean != nil {
		raw, clean := entry.TranscriptRaw, entry.TranscriptClean
		if payload.TranscriptRaw != nil {
			raw = *payload.TranscriptRaw
		}
		if payload.TranscriptClean != nil {
			clean = *payload.TranscriptClean
		}
		if err := h.entries.UpdateTranscript(c.Request.Context(), entry.ID, raw, clean); err != nil {
			h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to update transcript")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update entry"})
			return
		}
	}

	h.cache.Invalidate()
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// DeleteEntryHandler soft-deletes one entry and invalidates the cache.
func (h *Handler) DeleteEntryHandler(c *gin.Context) {
	if err := h.entries.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete entry"})
		return
	}
	h.cache.Invalidate()
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// LinkAnswerHandler re-runs the linker on one stored answer. The previous
// link, if any, is overwritten.
func (h *Handler) LinkAnswerHandler(c *gin.Context) {
	var payload struct {
		ReplyToID   string `json:"reply_to_id"`
		ContextHint string `json:"context_hint"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	entry, err := h.entries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve entry"})
		return
	}
	if !entry.IsAnswer() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Entry is not an answer"})
		return
	}

	decision, err := h.linker.Link(c.Request.Context(), entry, payload.ReplyToID, payload.ContextHint)
	if err != nil {
		h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to link answer")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link answer"})
		return
	}

	h.cache.Invalidate()
	c.JSON(http.StatusOK, decision)
}

// SubmitFeedbackHandler records one relevance vote.
func (h *Handler) SubmitFeedbackHandler(c *gin.Context) {
	var payload struct {
		Query    string `json:"query" binding:"required"`
		EntryID  string `json:"entry_id" binding:"required"`
		Relevant *bool  `json:"relevant" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.feedback.Add(c.Request.Context(), payload.Query, payload.EntryID, *payload.Relevant); err != nil {
		h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to record feedback")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record feedback"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

// FeedbackStatsHandler returns aggregate feedback statistics.
func (h *Handler) FeedbackStatsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("lowest", "10"))

	stats, err := h.feedback.Stats(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate feedback"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AudioHandler redirects to a presigned download URL for the entry's voice
// note.
func (h *Handler) AudioHandler(c *gin.Context) {
	entry, err := h.entries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve entry"})
		return
	}
	if entry.AudioRef == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry has no audio"})
		return
	}

	url, err := h.audio.PresignedURL(c.Request.Context(), entry.AudioRef, 15*time.Minute)
	if err != nil {
		h.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to presign audio")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve audio"})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// HealthHandler probes every backing service.
func (h *Handler) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	detail := make(gin.H, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			detail[name] = err.Error()
		} else {
			detail[name] = "ok"
		}
	}
	c.JSON(status, detail)
}
