package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"botadmin/internal/queue"
	"botadmin/internal/store"
)

// botForRequest resolves the :id bot and enforces visibility: admins see
// every bot, everyone else needs to be on the access list, and writes need
// an editing role. Responds and returns false on any failure.
func (a *API) botForRequest(c *gin.Context, write bool) (store.Bot, bool) {
	u := currentUser(c)
	b, ok := a.store.BotByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return store.Bot{}, false
	}
	if u.Role != store.RoleAdmin && !b.HasAccess(u.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return store.Bot{}, false
	}
	if write && !u.Role.CanEditBots() {
		c.JSON(http.StatusForbidden, gin.H{"error": "read-only role"})
		return store.Bot{}, false
	}
	return b, true
}

func itemIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return id, true
}

func (a *API) listBots(c *gin.Context) {
	c.JSON(http.StatusOK, listEnvelope(c, botViews(a.store.VisibleBots(currentUser(c)))))
}

func (a *API) getBot(c *gin.Context) {
	b, ok := a.botForRequest(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, botView(b))
}

type createBotRequest struct {
	Name           string         `json:"name" binding:"required"`
	OrganizationID string         `json:"organization_id"`
	Provider       store.Provider `json:"provider" binding:"required"`
	Model          string         `json:"model" binding:"required"`
	CredentialID   string         `json:"credential_id"`
}

func (a *API) createBot(c *gin.Context) {
	u := currentUser(c)
	if !u.Role.CanEditBots() {
		c.JSON(http.StatusForbidden, gin.H{"error": "read-only role"})
		return
	}
	var req createBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := a.store.AddBot(req.Name, req.OrganizationID, u.ID, store.ModelConfig{
		Provider:     req.Provider,
		Model:        req.Model,
		CredentialID: req.CredentialID,
	})
	switch {
	case errors.Is(err, store.ErrQuotaExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "organization bot quota exceeded"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create bot"})
	default:
		a.audit(u.ID, "bot.create", gin.H{"bot_id": b.ID})
		c.JSON(http.StatusCreated, botView(b))
	}
}

type updateBotRequest struct {
	Name             string  `json:"name"`
	SystemPrompt     *string `json:"system_prompt"`
	GroundingEnabled *bool   `json:"grounding_enabled"`
}

func (a *API) updateBot(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	var req updateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.store.UpdateBot(b.ID, store.BotUpdate{
		Name:             req.Name,
		SystemPrompt:     req.SystemPrompt,
		GroundingEnabled: req.GroundingEnabled,
	}); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	got, _ := a.store.BotByID(b.ID)
	c.JSON(http.StatusOK, botView(got))
}

func (a *API) deleteBot(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	if err := a.store.DeleteBot(b.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	a.audit(currentUser(c).ID, "bot.delete", gin.H{"bot_id": b.ID})
	c.Status(http.StatusNoContent)
}

// Q&A knowledge base

func (a *API) listQA(c *gin.Context) {
	b, ok := a.botForRequest(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, listEnvelope(c, b.QADatabase))
}

type qaRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

func (a *API) createQA(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	var req qaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, _ := a.store.AddQAItem(b.ID, req.Question, req.Answer)
	c.JSON(http.StatusCreated, item)
}

func (a *API) updateQA(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	var req qaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !a.store.UpdateQAItem(b.ID, itemID, req.Question, req.Answer) {
		c.JSON(http.StatusNotFound, gin.H{"error": "qa item not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) deleteQA(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	if !a.store.DeleteQAItem(b.ID, itemID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "qa item not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Unanswered questions

func (a *API) listUnanswered(c *gin.Context) {
	b, ok := a.botForRequest(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, listEnvelope(c, b.Unanswered))
}

type resolveRequest struct {
	Answer string `json:"answer"`
}

func (a *API) resolveUnanswered(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !a.store.ResolveUnansweredQuestion(b.ID, itemID, req.Answer) {
		c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Uploaded knowledge files

func (a *API) listFiles(c *gin.Context) {
	b, ok := a.botForRequest(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, listEnvelope(c, b.Files))
}

type uploadFileRequest struct {
	Name      string `json:"name" binding:"required"`
	SizeBytes int64  `json:"size_bytes"`
}

// uploadFile records the file and enqueues the processing job; the worker
// drives the status machine from pending_upload to ready.
func (a *API) uploadFile(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	var req uploadFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, _ := a.store.AddFile(b.ID, req.Name, req.SizeBytes)
	if a.queue != nil {
		if _, err := a.queue.Enqueue(c.Request.Context(), queue.FileJob{
			BotID:    b.ID,
			FileID:   f.ID,
			FileName: f.Name,
		}); err != nil {
			a.logger.Error().Err(err).Str("bot_id", b.ID).Msg("failed to enqueue file job")
			a.store.SetFileStatus(b.ID, f.ID, store.FileError, "failed to enqueue processing job")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule processing"})
			return
		}
		a.metrics.EnqueuedJobs.Inc()
	}
	c.JSON(http.StatusCreated, f)
}

func (a *API) deleteFile(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	if !a.store.DeleteFile(b.ID, itemID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Conversation logs

func (a *API) listConversations(c *gin.Context) {
	b, ok := a.botForRequest(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, listEnvelope(c, b.Conversations))
}

// Model configs

type modelConfigRequest struct {
	Provider     store.Provider `json:"provider" binding:"required"`
	Model        string         `json:"model" binding:"required"`
	CredentialID string         `json:"credential_id"`
	IsDefault    bool           `json:"is_default"`
}

func (a *API) addModelConfig(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	var req modelConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, _ := a.store.AddModelConfig(b.ID, store.ModelConfig{
		Provider:     req.Provider,
		Model:        req.Model,
		CredentialID: req.CredentialID,
		IsDefault:    req.IsDefault,
	})
	c.JSON(http.StatusCreated, cfg)
}

func (a *API) deleteModelConfig(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	err := a.store.DeleteModelConfig(b.ID, itemID)
	switch {
	case errors.Is(err, store.ErrLastModel):
		c.JSON(http.StatusConflict, gin.H{"error": "a bot must keep at least one model config"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "model config not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete model config"})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (a *API) setDefaultModelConfig(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	if err := a.store.SetDefaultModelConfig(b.ID, itemID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model config not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Integration channels

type channelRequest struct {
	Kind    store.ChannelKind `json:"kind" binding:"required"`
	Secret  string            `json:"secret"`
	Enabled bool              `json:"enabled"`
}

func (a *API) addChannel(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Kind {
	case store.ChannelTelegram, store.ChannelInstagram, store.ChannelWebWidget:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel kind"})
		return
	}

	sealed := ""
	if req.Secret != "" {
		var err error
		sealed, err = a.keyring.SealString(req.Secret)
		if err != nil {
			a.logger.Error().Err(err).Msg("failed to seal channel secret")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store secret"})
			return
		}
	}
	ch, _ := a.store.AddChannel(b.ID, req.Kind, sealed, req.Enabled)
	c.JSON(http.StatusCreated, channelResponse{
		ID:        ch.ID,
		Kind:      ch.Kind,
		Enabled:   ch.Enabled,
		HasSecret: ch.EncSecret != "",
		CreatedAt: ch.CreatedAt,
	})
}

type channelUpdateRequest struct {
	Enabled *bool   `json:"enabled"`
	Secret  *string `json:"secret"`
}

func (a *API) updateChannel(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	var req channelUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := store.ChannelUpdate{Enabled: req.Enabled}
	if req.Secret != nil {
		sealed, err := a.keyring.SealString(*req.Secret)
		if err != nil {
			a.logger.Error().Err(err).Msg("failed to seal channel secret")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store secret"})
			return
		}
		upd.EncSecret = &sealed
	}
	if !a.store.UpdateChannel(b.ID, itemID, upd) {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) deleteChannel(c *gin.Context) {
	b, ok := a.botForRequest(c, true)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c, "itemID")
	if !ok {
		return
	}
	if !a.store.DeleteChannel(b.ID, itemID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
