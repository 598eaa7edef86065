// Package classification implements the keyword-based message classification
// pipeline: category, sentiment, priority, escalation, template rendering and
// business-hours checks. Everything here is deterministic and does no I/O.
package classification

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"seller_server/core/domain"
)

// =============================================================================
// Category Rules
// =============================================================================

// categoryRule binds a category to its pattern. Rule order is a tie-break
// policy: the first matching rule wins, so a text matching both shipping and
// returns is always shipping.
type categoryRule struct {
	category domain.Category
	pattern  *regexp.Regexp
}

var categoryRules = []categoryRule{
	{domain.CategoryShipping, regexp.MustCompile(`(?i)\b(ship|delivery|track|arrive|when.*get|shipping|fedex|ups|usps|postal|mail)\b`)},
	{domain.CategoryReturns, regexp.MustCompile(`(?i)\b(return|refund|exchange|send.*back|not.*happy|wrong.*item|defective|broken)\b`)},
	{domain.CategoryPayment, regexp.MustCompile(`(?i)\b(payment|pay|charge|bill|invoice|paypal|credit.*card|transaction|money)\b`)},
	{domain.CategoryTechnical, regexp.MustCompile(`(?i)\b(not.*work|broken|defect|issue|problem|error|fix|malfunction|stop.*working)\b`)},
	{domain.CategoryWarranty, regexp.MustCompile(`(?i)\b(warranty|guarantee|cover|repair|replace|protection|coverage)\b`)},
	{domain.CategoryGreeting, regexp.MustCompile(`(?i)\b(hello|hi|thank|thanks|appreciate|good.*day|morning|afternoon|evening)\b`)},
	{domain.CategoryComplaint, regexp.MustCompile(`(?i)\b(complaint|angry|mad|frustrated|terrible|awful|worst|horrible|scam|fraud)\b`)},
}

var (
	positiveWords = regexp.MustCompile(`(?i)\b(good|great|excellent|happy|satisfied|thank|love|perfect|amazing|wonderful|awesome|fantastic|outstanding)\b`)
	negativeWords = regexp.MustCompile(`(?i)\b(bad|terrible|awful|hate|angry|disappointed|worst|horrible|useless|fraud|scam|mad|furious|upset)\b`)
	urgentWords   = regexp.MustCompile(`(?i)\b(urgent|asap|emergency|immediately|complaint|dispute|lawsuit|attorney|lawyer|legal|sue)\b`)
)

// =============================================================================
// Classifier
// =============================================================================

// Classifier enriches message text with category, sentiment, priority and
// an escalation decision. Constructed once and injected; the clock is
// injectable for the time-dependent helpers.
type Classifier struct {
	now func() time.Time
}

// NewClassifier creates a classifier using the wall clock.
func NewClassifier() *Classifier {
	return &Classifier{now: time.Now}
}

// NewClassifierWithClock creates a classifier with a fixed clock for tests.
func NewClassifierWithClock(now func() time.Time) *Classifier {
	return &Classifier{now: now}
}

// Classify returns the category of the first matching rule, or general when
// nothing matches.
func (c *Classifier) Classify(text string) domain.Category {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	return domain.CategoryGeneral
}

// Sentiment counts positive and negative lexicon hits. A margin greater
// than 1 is required in either direction; near-ties are neutral so repeated
// classification of borderline text cannot flip-flop.
func (c *Classifier) Sentiment(text string) domain.Sentiment {
	positive := len(positiveWords.FindAllString(text, -1))
	negative := len(negativeWords.FindAllString(text, -1))

	if negative > positive+1 {
		return domain.SentimentNegative
	}
	if positive > negative+1 {
		return domain.SentimentPositive
	}
	return domain.SentimentNeutral
}

// Priority is high when any urgency or legal-threat term is present,
// regardless of sentiment; otherwise medium for negative sentiment, else
// normal.
func (c *Classifier) Priority(text string, sentiment domain.Sentiment) domain.Priority {
	if urgentWords.MatchString(text) {
		return domain.PriorityHigh
	}
	if sentiment == domain.SentimentNegative {
		return domain.PriorityMedium
	}
	return domain.PriorityNormal
}

// ShouldEscalate reports whether any configured keyword occurs in the text
// (case-insensitive substring). An empty keyword list never escalates.
func (c *Classifier) ShouldEscalate(text string, escalationKeywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range escalationKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Enrich runs the full classification for one message text.
func (c *Classifier) Enrich(text string, escalationKeywords []string) (domain.Category, domain.Sentiment, domain.Priority, bool) {
	category := c.Classify(text)
	sentiment := c.Sentiment(text)
	priority := c.Priority(text, sentiment)
	escalated := c.ShouldEscalate(text, escalationKeywords)
	return category, sentiment, priority, escalated
}

// =============================================================================
// Template Rendering
// =============================================================================

// RenderTemplate renders the response template for a category, falling back
// to the general template. Placeholders are literal tokens, not a templating
// language: {name} is substituted only when a recipient name is known,
// {date} and {time} with the current local date and time.
func (c *Classifier) RenderTemplate(category domain.Category, templates domain.ResponseTemplates, recipientName string) string {
	response := templates.ForCategory(category)

	if recipientName != "" {
		response = strings.ReplaceAll(response, "{name}", recipientName)
	}
	now := c.now()
	response = strings.ReplaceAll(response, "{date}", now.Format("1/2/2006"))
	response = strings.ReplaceAll(response, "{time}", now.Format("3:04:05 PM"))

	return response
}

// =============================================================================
// Business Hours
// =============================================================================

// WithinBusinessHours reports whether the current time falls inside the
// configured window. Comparison is at hour granularity: minutes in the
// configured window are accepted as input but ignored, matching the
// behavior the dashboard has always had.
func (c *Classifier) WithinBusinessHours(hours domain.BusinessHours, weekdaysOnly bool) bool {
	now := c.now()

	if weekdaysOnly {
		switch now.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}

	startHour := parseHour(hours.Start, 9)
	endHour := parseHour(hours.End, 17)
	currentHour := now.Hour()

	return currentHour >= startHour && currentHour <= endHour
}

func parseHour(hhmm string, fallback int) int {
	parts := strings.SplitN(hhmm, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return fallback
	}
	return hour
}
