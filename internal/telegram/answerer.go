package telegram

import (
	"strings"

	"botadmin/internal/store"
)

const fallbackReply = "I don't have an answer for that yet. Your question has been forwarded to the team."

// normalize lowercases, trims and collapses inner whitespace so that
// matching is insensitive to casing and spacing.
func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// answerFor looks the question up in the bot's knowledge base. Exact
// normalized match wins; otherwise the first entry whose question is
// contained in (or contains) the incoming text is used.
func answerFor(b store.Bot, question string) (string, bool) {
	norm := normalize(question)
	if norm == "" {
		return "", false
	}
	for _, item := range b.QADatabase {
		if normalize(item.Question) == norm {
			return item.Answer, true
		}
	}
	for _, item := range b.QADatabase {
		iq := normalize(item.Question)
		if iq == "" {
			continue
		}
		if strings.Contains(norm, iq) || strings.Contains(iq, norm) {
			return item.Answer, true
		}
	}
	return "", false
}
