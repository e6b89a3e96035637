package telegram

import (
	"testing"

	"botadmin/internal/store"
)

func TestAnswerForMatching(t *testing.T) {
	b := store.Bot{QADatabase: []store.QAItem{
		{ID: 1, Question: "What are your opening hours?", Answer: "We are open 9-18."},
		{ID: 2, Question: "pricing", Answer: "See the pricing page."},
	}}

	if got, ok := answerFor(b, "  what ARE your opening   hours? "); !ok || got != "We are open 9-18." {
		t.Fatalf("exact normalized match failed: %q %v", got, ok)
	}
	if got, ok := answerFor(b, "tell me about pricing please"); !ok || got != "See the pricing page." {
		t.Fatalf("containment match failed: %q %v", got, ok)
	}
	if _, ok := answerFor(b, "do you ship abroad"); ok {
		t.Fatal("expected no match")
	}
	if _, ok := answerFor(b, "   "); ok {
		t.Fatal("blank question must not match")
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("  Hello   World "); got != "hello world" {
		t.Fatalf("normalize = %q", got)
	}
}
