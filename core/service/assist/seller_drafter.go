// Package assist produces suggested reply drafts for stored messages. The
// drafter is optional: without an API key every implementation degrades to
// "not configured" and the rest of the system works unchanged. Drafts are
// suggestions for a human; nothing here ever sends a reply.
package assist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/out"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 512
	defaultTemperature = 0.7
	defaultTimeout     = 30 * time.Second

	// maxMessageChars bounds the prompt; buyer messages past this length
	// add tokens without adding signal.
	maxMessageChars = 2000
)

const systemPrompt = "You are a customer support assistant for an online marketplace seller. " +
	"Write a short, polite, professional reply to the buyer's message. " +
	"Do not invent order details, tracking numbers or policies. " +
	"Reply with the message text only, no subject line and no signature."

// Config configures the drafter.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Drafter implements out.ReplyDrafter on the OpenAI chat API.
type Drafter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

var _ out.ReplyDrafter = (*Drafter)(nil)

// NewDrafter creates a drafter. With an empty API key it returns a disabled
// drafter that rejects every request.
func NewDrafter(cfg Config) *Drafter {
	d := &Drafter{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}
	if d.model == "" {
		d.model = DefaultModel
	}
	if d.maxTokens <= 0 {
		d.maxTokens = defaultMaxTokens
	}
	if d.temperature == 0 {
		d.temperature = defaultTemperature
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	if cfg.APIKey != "" {
		d.client = openai.NewClient(cfg.APIKey)
	}
	return d
}

// Enabled reports whether an API key was configured.
func (d *Drafter) Enabled() bool {
	return d != nil && d.client != nil
}

// DraftReply generates a suggested reply for the message.
func (d *Drafter) DraftReply(ctx context.Context, msg *domain.Message) (string, error) {
	if !d.Enabled() {
		return "", fmt.Errorf("reply drafter not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(msg),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("draft completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("draft completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(msg *domain.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Category: %s\n", msg.Category)
	fmt.Fprintf(&b, "Sentiment: %s\n", msg.Sentiment)
	if msg.SenderUsername != nil {
		fmt.Fprintf(&b, "Buyer: %s\n", *msg.SenderUsername)
	}
	if msg.ItemID != nil {
		fmt.Fprintf(&b, "Item: %s\n", *msg.ItemID)
	}
	fmt.Fprintf(&b, "Subject: %s\n\n", msg.Subject)

	text := msg.MessageText
	if len(text) > maxMessageChars {
		text = text[:maxMessageChars]
	}
	fmt.Fprintf(&b, "Buyer message:\n%s\n", text)

	return b.String()
}
