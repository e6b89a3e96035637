package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"botadmin/internal/export"
	"botadmin/internal/store"
)

func (a *API) summary(c *gin.Context) {
	c.JSON(http.StatusOK, a.store.Summarize())
}

func (a *API) recentAudit(c *gin.Context) {
	limit, _ := strconv.ParseUint(c.Query("limit"), 10, 64)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	entries, err := a.db.RecentActions(ctx, limit)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to load audit trail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": entries, "count": len(entries)})
}

// exportCSV serves downloadable snapshots of the main collections. The
// resource comes in as "users.csv" etc; bot-scoped resources flatten every
// visible bot's items with the bot name on each row.
func (a *API) exportCSV(c *gin.Context) {
	resource := strings.TrimSuffix(c.Param("resource"), ".csv")
	u := currentUser(c)

	var (
		headers []string
		rows    []export.Row
	)
	switch resource {
	case "users":
		if u.Role != store.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		headers = []string{"id", "username", "role", "accessible_bots", "created_at"}
		bots := a.store.Bots()
		for _, usr := range a.store.Users() {
			var access []string
			for _, b := range bots {
				if b.HasAccess(usr.ID) {
					access = append(access, b.Name)
				}
			}
			rows = append(rows, export.Row{
				"id":              usr.ID,
				"username":        usr.Username,
				"role":            string(usr.Role),
				"accessible_bots": access,
				"created_at":      usr.CreatedAt,
			})
		}
	case "credentials":
		if u.Role != store.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		headers = []string{"id", "name", "provider", "key_mask", "created_at"}
		for _, item := range a.store.Credentials() {
			rows = append(rows, export.Row{
				"id":         item.ID,
				"name":       item.Name,
				"provider":   string(item.Provider),
				"key_mask":   a.maskCredential(item),
				"created_at": item.CreatedAt,
			})
		}
	case "qa":
		headers = []string{"bot", "id", "question", "answer", "created_at"}
		for _, b := range a.store.VisibleBots(u) {
			for _, item := range b.QADatabase {
				rows = append(rows, export.Row{
					"bot":        b.Name,
					"id":         item.ID,
					"question":   item.Question,
					"answer":     item.Answer,
					"created_at": item.CreatedAt,
				})
			}
		}
	case "conversations":
		headers = []string{"bot", "id", "channel", "user", "question", "answer", "answered", "created_at"}
		for _, b := range a.store.VisibleBots(u) {
			for _, entry := range b.Conversations {
				rows = append(rows, export.Row{
					"bot":        b.Name,
					"id":         entry.ID,
					"channel":    entry.Channel,
					"user":       entry.UserName,
					"question":   entry.Question,
					"answer":     entry.Answer,
					"answered":   entry.Answered,
					"created_at": entry.CreatedAt,
				})
			}
		}
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown export resource"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+resource+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(export.CSV(headers, rows)))
}
