package facade

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"botadmin/internal/store"
)

type recordingNotifier struct {
	successes []string
	errors    []string
}

func (r *recordingNotifier) Success(msg string) { r.successes = append(r.successes, msg) }
func (r *recordingNotifier) Error(msg string)   { r.errors = append(r.errors, msg) }

func newFixture(t *testing.T) (*store.Store, *Facade, *recordingNotifier) {
	t.Helper()
	s := store.New(store.Config{})
	if err := s.Seed("pw"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n := &recordingNotifier{}
	return s, New(s, n, 0, zerolog.Nop()), n
}

func TestLoginNotifies(t *testing.T) {
	_, f, n := newFixture(t)

	if f.Login("admin", "nope") {
		t.Fatal("expected failed login")
	}
	if len(n.errors) != 1 {
		t.Fatalf("expected one error notification, got %v", n.errors)
	}
	if !f.Login("admin", "pw") {
		t.Fatal("expected successful login")
	}
	if len(n.successes) != 1 {
		t.Fatalf("expected one success notification, got %v", n.successes)
	}
}

func TestUpdateBotSettingsSimulatedFailure(t *testing.T) {
	s, f, n := newFixture(t)
	b, err := s.AddBot("B1", "", "", store.ModelConfig{Provider: store.ProviderOpenAI, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}

	if err := f.UpdateBotSettings(b.ID, store.BotUpdate{Name: "error"}); !errors.Is(err, ErrSimulatedFailure) {
		t.Fatalf("expected simulated failure, got %v", err)
	}
	got, _ := s.BotByID(b.ID)
	if got.Name != "B1" {
		t.Fatalf("expected prior state untouched, got name %q", got.Name)
	}
	if len(n.errors) != 1 {
		t.Fatalf("expected error toast, got %v", n.errors)
	}

	if err := f.UpdateBotSettings(b.ID, store.BotUpdate{Name: "Support Bot"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.BotByID(b.ID)
	if got.Name != "Support Bot" {
		t.Fatalf("expected rename applied, got %q", got.Name)
	}
}

func TestAddQAItemWithoutSelection(t *testing.T) {
	_, f, n := newFixture(t)
	if _, err := f.AddQAItem("q", "a"); err == nil {
		t.Fatal("expected error without a selected bot")
	}
	if len(n.errors) != 1 {
		t.Fatalf("expected error toast, got %v", n.errors)
	}
}
