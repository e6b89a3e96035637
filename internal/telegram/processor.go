package telegram

import (
	"context"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/rs/zerolog"

	"botadmin/internal/metrics"
	"botadmin/internal/queue"
)

// Processor wraps the dispatcher's default processing with metrics and
// cross-instance update deduplication, keyed by the admin-panel bot id so
// two bots sharing a redis never swallow each other's updates.
type Processor struct {
	Base    ext.BaseProcessor
	BotID   string
	Dedupe  *queue.UpdateDeduplicator
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

func (p Processor) ProcessUpdate(d *ext.Dispatcher, b *gotgbot.Bot, ctx *ext.Context) error {
	if p.Metrics != nil {
		p.Metrics.TelegramUpdates.Inc()
	}
	if p.Dedupe != nil {
		first, err := p.Dedupe.MarkFirst(context.Background(), p.BotID, ctx.UpdateId)
		if err != nil {
			p.Logger.Error().Err(err).Int64("update_id", ctx.UpdateId).Msg("failed to dedupe update")
		} else if !first {
			return nil
		}
	}
	return p.Base.ProcessUpdate(d, b, ctx)
}
