package assist

import (
	"context"
	"strings"
	"testing"

	"seller_server/core/domain"
)

func TestDrafterDisabledWithoutKey(t *testing.T) {
	d := NewDrafter(Config{})

	if d.Enabled() {
		t.Errorf("Enabled() = true without an API key")
	}
	if _, err := d.DraftReply(context.Background(), &domain.Message{}); err == nil {
		t.Errorf("DraftReply() expected error when disabled")
	}
}

func TestBuildPromptIncludesContext(t *testing.T) {
	buyer := "buyer42"
	item := "110543259765"
	msg := &domain.Message{
		SenderUsername: &buyer,
		ItemID:         &item,
		Subject:        "Shipping question",
		MessageText:    "When will this arrive?",
		Category:       domain.CategoryShipping,
		Sentiment:      domain.SentimentNeutral,
	}

	prompt := buildPrompt(msg)
	for _, want := range []string{"buyer42", "110543259765", "Shipping question", "When will this arrive?", "shipping"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptTruncatesLongMessages(t *testing.T) {
	msg := &domain.Message{
		Subject:     "long",
		MessageText: strings.Repeat("x", maxMessageChars+500),
		Category:    domain.CategoryGeneral,
		Sentiment:   domain.SentimentNeutral,
	}

	prompt := buildPrompt(msg)
	if strings.Count(prompt, "x") != maxMessageChars {
		t.Errorf("message body not truncated to %d chars", maxMessageChars)
	}
}
