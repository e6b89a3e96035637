package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
	"github.com/rs/zerolog"

	"botadmin/internal/crypto"
	"botadmin/internal/metrics"
	"botadmin/internal/queue"
	"botadmin/internal/store"
)

// Bridge keeps one long-polling telegram connection per bot that has an
// enabled telegram channel, reconciling against the store on a timer so
// channels toggled through the admin panel come and go without a restart.
type Bridge struct {
	store     *store.Store
	keyring   *crypto.Keyring
	dedupe    *queue.UpdateDeduplicator
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	syncEvery time.Duration

	mu      sync.Mutex
	runners map[string]*runner
}

type runner struct {
	botID   string
	token   string
	updater *ext.Updater
}

type Config struct {
	Store     *store.Store
	Keyring   *crypto.Keyring
	Dedupe    *queue.UpdateDeduplicator
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	SyncEvery time.Duration
}

func NewBridge(cfg Config) *Bridge {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.SyncEvery <= 0 {
		cfg.SyncEvery = 30 * time.Second
	}
	return &Bridge{
		store:     cfg.Store,
		keyring:   cfg.Keyring,
		dedupe:    cfg.Dedupe,
		logger:    cfg.Logger,
		metrics:   m,
		syncEvery: cfg.SyncEvery,
		runners:   make(map[string]*runner),
	}
}

// Run blocks until ctx is done, reconciling runners on every tick.
func (br *Bridge) Run(ctx context.Context) {
	br.sync()
	ticker := time.NewTicker(br.syncEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			br.stopAll()
			return
		case <-ticker.C:
			br.sync()
		}
	}
}

// sync computes the desired runner set from the store and starts or stops
// pollers to match. A changed token counts as a different runner.
func (br *Bridge) sync() {
	desired := make(map[string]string)
	for _, b := range br.store.Bots() {
		for _, ch := range b.Channels {
			if ch.Kind != store.ChannelTelegram || !ch.Enabled || ch.EncSecret == "" {
				continue
			}
			token, err := br.keyring.OpenString(ch.EncSecret)
			if err != nil {
				br.logger.Error().Err(err).Str("bot_id", b.ID).Msg("failed to open telegram token")
				continue
			}
			desired[fmt.Sprintf("%s/%d", b.ID, ch.ID)] = token
			break
		}
	}

	br.mu.Lock()
	defer br.mu.Unlock()

	for key, r := range br.runners {
		if token, ok := desired[key]; !ok || token != r.token {
			br.stopLocked(key, r)
		}
	}
	for key, token := range desired {
		if _, ok := br.runners[key]; ok {
			continue
		}
		botID := key[:strings.LastIndexByte(key, '/')]
		r, err := br.startRunner(botID, token)
		if err != nil {
			br.logger.Error().Err(err).Str("bot_id", botID).Msg("failed to start telegram poller")
			continue
		}
		br.runners[key] = r
	}
}

func (br *Bridge) startRunner(botID, token string) (*runner, error) {
	bot, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	log := br.logger.With().Str("bot_id", botID).Logger()
	logErr := func(err error) {
		log.Error().Str("component", "telegram").Msg(err.Error())
	}
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		MaxRoutines:      16,
		UnhandledErrFunc: logErr,
		Processor: Processor{
			BotID:   botID,
			Dedupe:  br.dedupe,
			Metrics: br.metrics,
			Logger:  log,
		},
	})
	dispatcher.AddHandler(handlers.NewMessage(message.Text, br.onMessage(botID)))

	updater := ext.NewUpdater(dispatcher, &ext.UpdaterOpts{UnhandledErrFunc: logErr})
	if err := updater.StartPolling(bot, &ext.PollingOpts{
		EnableWebhookDeletion: true,
		DropPendingUpdates:    true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 50,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: 60 * time.Second,
			},
		},
	}); err != nil {
		return nil, fmt.Errorf("start polling: %w", err)
	}
	log.Info().Str("bot_username", bot.User.Username).Msg("telegram poller started")
	return &runner{botID: botID, token: token, updater: updater}, nil
}

// onMessage answers from the bot's knowledge base; misses are recorded as
// unanswered questions for the panel to resolve.
func (br *Bridge) onMessage(botID string) handlers.Response {
	return func(b *gotgbot.Bot, ctx *ext.Context) error {
		msg := ctx.EffectiveMessage
		if msg == nil || msg.Text == "" {
			return nil
		}
		adminBot, ok := br.store.BotByID(botID)
		if !ok {
			return nil
		}

		userName := ""
		if ctx.EffectiveUser != nil {
			userName = ctx.EffectiveUser.Username
			if userName == "" {
				userName = ctx.EffectiveUser.FirstName
			}
		}

		answer, found := answerFor(adminBot, msg.Text)
		reply := answer
		if !found {
			reply = fallbackReply
			br.store.AddUnansweredQuestion(botID, msg.Text, "telegram")
		}
		br.store.AddConversationLog(botID, store.ConversationLog{
			Channel:  "telegram",
			UserName: userName,
			Question: msg.Text,
			Answer:   reply,
			Answered: found,
		})

		_, err := msg.Reply(b, reply, nil)
		return err
	}
}

func (br *Bridge) stopAll() {
	br.mu.Lock()
	defer br.mu.Unlock()
	for key, r := range br.runners {
		br.stopLocked(key, r)
	}
}

func (br *Bridge) stopLocked(key string, r *runner) {
	if err := r.updater.Stop(); err != nil {
		br.logger.Error().Err(err).Str("bot_id", r.botID).Msg("failed to stop telegram poller")
	}
	delete(br.runners, key)
}
