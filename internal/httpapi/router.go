package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the full HTTP surface: health and metrics at the root,
// everything else under /api/v1 behind bearer auth.
func (a *API) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", a.login)
	v1.POST("/invites/accept", a.acceptInvite)

	auth := v1.Group("", a.authRequired())
	auth.POST("/auth/logout", a.logout)
	auth.GET("/auth/me", a.me)

	auth.GET("/analytics/summary", a.summary)
	auth.GET("/export/:resource", a.exportCSV)

	admin := auth.Group("", a.requireAdmin())
	admin.GET("/users", a.listUsers)
	admin.POST("/users", a.createUser)
	admin.PATCH("/users/:id", a.updateUser)
	admin.DELETE("/users/:id", a.deleteUser)

	admin.GET("/credentials", a.listCredentials)
	admin.POST("/credentials", a.createCredential)
	admin.PATCH("/credentials/:id", a.updateCredential)
	admin.DELETE("/credentials/:id", a.deleteCredential)

	admin.GET("/organizations", a.listOrganizations)
	admin.POST("/organizations", a.createOrganization)
	admin.GET("/organizations/:id", a.getOrganization)
	admin.GET("/organizations/:id/usage", a.orgUsage)
	admin.GET("/organizations/:id/invites", a.listInvites)
	admin.POST("/organizations/:id/invites", a.createInvite)

	admin.GET("/analytics/audit", a.recentAudit)

	auth.GET("/bots", a.listBots)
	auth.POST("/bots", a.createBot)

	bot := auth.Group("/bots/:id", a.orgQuota())
	bot.GET("", a.getBot)
	bot.PATCH("", a.updateBot)
	bot.DELETE("", a.deleteBot)

	bot.GET("/qa", a.listQA)
	bot.POST("/qa", a.createQA)
	bot.PATCH("/qa/:itemID", a.updateQA)
	bot.DELETE("/qa/:itemID", a.deleteQA)

	bot.GET("/unanswered", a.listUnanswered)
	bot.POST("/unanswered/:itemID/resolve", a.resolveUnanswered)

	bot.GET("/files", a.listFiles)
	bot.POST("/files", a.uploadFile)
	bot.DELETE("/files/:itemID", a.deleteFile)

	bot.GET("/conversations", a.listConversations)

	bot.POST("/models", a.addModelConfig)
	bot.DELETE("/models/:itemID", a.deleteModelConfig)
	bot.POST("/models/:itemID/default", a.setDefaultModelConfig)

	bot.POST("/channels", a.addChannel)
	bot.PATCH("/channels/:itemID", a.updateChannel)
	bot.DELETE("/channels/:itemID", a.deleteChannel)

	return r
}

func (a *API) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.metrics.HTTPRequests.Inc()
		a.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

// orgQuota enforces the owning organization's API limits on bot-scoped
// routes: the monthly plan quota first, then the hourly rate window.
// Bots without an organization are not limited.
func (a *API) orgQuota() gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := a.store.BotByID(c.Param("id"))
		if !ok || b.OrganizationID == "" {
			c.Next()
			return
		}
		org, ok := a.store.OrgByID(b.OrganizationID)
		if !ok {
			c.Next()
			return
		}
		if !org.CanUseAPI() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "monthly api quota exceeded"})
			return
		}
		if a.limiter != nil {
			allowed, _, resetAt, err := a.limiter.Allow(c.Request.Context(), org.ID, time.Now())
			if err != nil {
				a.logger.Warn().Err(err).Str("org_id", org.ID).Msg("rate limiter unavailable, allowing request")
			} else if !allowed {
				c.Header("X-RateLimit-Reset", resetAt.Format(time.RFC3339))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "hourly rate limit exceeded"})
				return
			}
		}
		a.store.IncrementAPIUsage(org.ID)
		c.Next()
	}
}
