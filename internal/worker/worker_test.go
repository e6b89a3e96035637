package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"botadmin/internal/queue"
	"botadmin/internal/store"
)

func testQueue(t *testing.T) *queue.StreamQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := queue.NewStreamQueue(rdb, "botadmin:files", "botadmin-workers", "test", 50*time.Millisecond)
	if err := q.EnsureGroup(context.Background()); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	return q
}

func TestSimulateIngestionMarksReady(t *testing.T) {
	s := store.New(store.Config{})
	b, err := s.AddBot("B1", "", "", store.ModelConfig{Provider: store.ProviderOpenAI, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	f, ok := s.AddFile(b.ID, "faq.pdf", 128)
	if !ok {
		t.Fatal("add file failed")
	}

	w := New(Config{Store: s, Queue: testQueue(t), StageDelay: time.Millisecond})
	if err := w.simulateIngestion(context.Background(), queue.FileJob{BotID: b.ID, FileID: f.ID}); err != nil {
		t.Fatalf("simulate ingestion: %v", err)
	}

	got, _ := s.BotByID(b.ID)
	if got.Files[0].Status != store.FileReady {
		t.Fatalf("expected ready, got %s", got.Files[0].Status)
	}
}

func TestHandleDropsJobForDeletedBot(t *testing.T) {
	s := store.New(store.Config{})
	q := testQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.FileJob{BotID: "gone", FileID: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := q.Read(ctx, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("read: %v (%d msgs)", err, len(msgs))
	}

	w := New(Config{Store: s, Queue: q, StageDelay: time.Millisecond})
	w.handle(ctx, w.logger, msgs[0])

	left, err := q.Read(ctx, 1)
	if err != nil {
		t.Fatalf("read after handle: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected job acked, got %d messages", len(left))
	}
}

func TestHandleRequeuesUntilRetriesExhausted(t *testing.T) {
	s := store.New(store.Config{})
	b, _ := s.AddBot("B1", "", "", store.ModelConfig{Provider: store.ProviderOpenAI, Model: "gpt-4o"})
	f, _ := s.AddFile(b.ID, "broken.pdf", 64)
	q := testQueue(t)
	ctx := context.Background()

	boom := errors.New("parse failure")
	w := New(Config{
		Store:         s,
		Queue:         q,
		MaxJobRetries: 1,
		Process:       func(context.Context, queue.FileJob) error { return boom },
	})

	if _, err := q.Enqueue(ctx, queue.FileJob{BotID: b.ID, FileID: f.ID}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// first attempt requeues, second gives up
	for i := 0; i < 2; i++ {
		msgs, err := q.Read(ctx, 1)
		if err != nil || len(msgs) != 1 {
			t.Fatalf("read attempt %d: %v (%d msgs)", i, err, len(msgs))
		}
		w.handle(ctx, w.logger, msgs[0])
	}

	got, _ := s.BotByID(b.ID)
	if got.Files[0].Status != store.FileError {
		t.Fatalf("expected error status, got %s", got.Files[0].Status)
	}
	if got.Files[0].Error != "parse failure" {
		t.Fatalf("unexpected error message %q", got.Files[0].Error)
	}
}
