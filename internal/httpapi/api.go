package httpapi

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"botadmin/internal/crypto"
	"botadmin/internal/metrics"
	"botadmin/internal/queue"
	"botadmin/internal/storage"
	"botadmin/internal/store"
)

// API carries the handlers' shared dependencies. The db handle is only used
// for the audit trail; entity state always goes through the store.
type API struct {
	store     *store.Store
	db        *storage.Store
	queue     *queue.StreamQueue
	keyring   *crypto.Keyring
	limiter   *queue.OrgRateLimiter
	jwtSecret []byte
	tokenTTL  time.Duration
	inviteTTL time.Duration
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

type Config struct {
	Store     *store.Store
	DB        *storage.Store
	Queue     *queue.StreamQueue
	Keyring   *crypto.Keyring
	Limiter   *queue.OrgRateLimiter
	JWTSecret string
	TokenTTL  time.Duration
	InviteTTL time.Duration
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

func New(cfg Config) *API {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = 72 * time.Hour
	}
	return &API{
		store:     cfg.Store,
		db:        cfg.DB,
		queue:     cfg.Queue,
		keyring:   cfg.Keyring,
		limiter:   cfg.Limiter,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
		inviteTTL: cfg.InviteTTL,
		logger:    cfg.Logger,
		metrics:   m,
	}
}

// listEnvelope is the pagination contract every collection endpoint serves.
func listEnvelope[T any](c *gin.Context, items []T) gin.H {
	limit, offset := paginationParams(c)
	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return gin.H{"results": items[offset:end], "count": total}
}

func paginationParams(c *gin.Context) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// audit records an admin action; failures are logged, never surfaced.
func (a *API) audit(actorID, action string, meta any) {
	if a.db == nil {
		return
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		raw = []byte("{}")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.db.LogAction(ctx, storage.AuditEntry{ActorID: actorID, Action: action, MetaJSON: string(raw)}); err != nil {
		a.logger.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}
