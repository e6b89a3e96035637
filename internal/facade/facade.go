package facade

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"botadmin/internal/store"
)

// Notifier receives the user-facing outcome of each action, standing in for
// the toast layer of the panel.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type NopNotifier struct{}

func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string)   {}

var ErrSimulatedFailure = errors.New("simulated request failure")

// Facade wraps store actions with a fixed artificial latency and pairs each
// outcome with a notification, mimicking a remote API during prototyping.
// The delay is deliberately not cancellable: a pending call still applies
// its mutation when it resolves.
type Facade struct {
	store    *store.Store
	notifier Notifier
	latency  time.Duration
	logger   zerolog.Logger
}

func New(s *store.Store, n Notifier, latency time.Duration, logger zerolog.Logger) *Facade {
	if n == nil {
		n = NopNotifier{}
	}
	return &Facade{store: s, notifier: n, latency: latency, logger: logger}
}

func (f *Facade) delay() {
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
}

func (f *Facade) Login(username, password string) bool {
	f.delay()
	if !f.store.Login(username, password) {
		f.notifier.Error("Invalid username or password")
		return false
	}
	f.notifier.Success("Welcome back")
	return true
}

func (f *Facade) Logout() {
	f.delay()
	f.store.Logout()
	f.notifier.Success("Signed out")
}

// UpdateBotSettings keeps the prototype's failure trigger: a settings update
// whose name is the literal "error" fails after the usual delay and leaves
// prior state untouched.
func (f *Facade) UpdateBotSettings(botID string, upd store.BotUpdate) error {
	f.delay()
	if upd.Name == "error" {
		f.notifier.Error("Failed to save bot settings")
		return ErrSimulatedFailure
	}
	if err := f.store.UpdateBot(botID, upd); err != nil {
		f.notifier.Error("Failed to save bot settings")
		return err
	}
	f.notifier.Success("Bot settings saved")
	return nil
}

func (f *Facade) AddQAItem(question, answer string) (store.QAItem, error) {
	f.delay()
	item, ok := f.store.AddQAItemToCurrentBot(question, answer)
	if !ok {
		f.notifier.Error("No bot selected")
		return store.QAItem{}, store.ErrNotFound
	}
	f.notifier.Success("Q&A pair added")
	return item, nil
}

func (f *Facade) DeleteQAItem(botID string, itemID int64) {
	f.delay()
	if f.store.DeleteQAItem(botID, itemID) {
		f.notifier.Success("Q&A pair removed")
	}
}

func (f *Facade) AddCredential(name string, provider store.Provider, encAPIKey string) store.CredentialVaultItem {
	f.delay()
	c := f.store.AddCredential(name, provider, encAPIKey)
	f.notifier.Success("Credential stored")
	return c
}

func (f *Facade) DeleteCredential(id string) {
	f.delay()
	f.store.DeleteCredential(id)
	f.notifier.Success("Credential deleted")
}

func (f *Facade) AddUser(username, password string, role store.Role, accessibleBotIDs []string) (store.User, error) {
	f.delay()
	u, err := f.store.AddUser(username, password, role, accessibleBotIDs)
	if err != nil {
		f.notifier.Error("Failed to create user")
		return store.User{}, err
	}
	f.notifier.Success("User created")
	return u, nil
}

func (f *Facade) DeleteUser(id string) error {
	f.delay()
	if err := f.store.DeleteUser(id); err != nil {
		f.notifier.Error("Failed to delete user")
		return err
	}
	f.notifier.Success("User deleted")
	return nil
}
