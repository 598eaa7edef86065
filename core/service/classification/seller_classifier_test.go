package classification

import (
	"testing"
	"time"

	"seller_server/core/domain"
)

// TestClassifyCategory tests the keyword-rule classification and its
// fixed rule order.
func TestClassifyCategory(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name string
		text string
		want domain.Category
	}{
		{
			name: "shipping question",
			text: "When will my order ship? I need the tracking number",
			want: domain.CategoryShipping,
		},
		{
			name: "carrier name alone is shipping",
			text: "The USPS lost my package",
			want: domain.CategoryShipping,
		},
		{
			name: "refund request",
			text: "I want a refund, the item is not what I ordered",
			want: domain.CategoryReturns,
		},
		{
			name: "payment question",
			text: "My PayPal transaction shows a double charge",
			want: domain.CategoryPayment,
		},
		{
			name: "technical issue",
			text: "The device stopped working after one day, there is an error light",
			want: domain.CategoryTechnical,
		},
		{
			name: "warranty question",
			text: "Is this covered under warranty?",
			want: domain.CategoryWarranty,
		},
		{
			name: "greeting only",
			text: "Hello! Thanks for the quick response",
			want: domain.CategoryGreeting,
		},
		{
			name: "complaint keywords",
			text: "This is a scam, absolutely the worst seller",
			want: domain.CategoryComplaint,
		},
		{
			name: "no keywords falls back to general",
			text: "Does the blue one come in size medium?",
			want: domain.CategoryGeneral,
		},
		{
			name: "empty text is general",
			text: "",
			want: domain.CategoryGeneral,
		},
		{
			name: "shipping wins over returns when both match",
			text: "I want to return this, the delivery was very late",
			want: domain.CategoryShipping,
		},
		{
			name: "returns wins over technical for broken item",
			text: "It is broken, I want to exchange it",
			want: domain.CategoryReturns,
		},
		{
			name: "inflected word does not cross the boundary",
			text: "The package arrived yesterday",
			want: domain.CategoryGeneral,
		},
		{
			name: "case insensitive match",
			text: "WHERE IS MY REFUND",
			want: domain.CategoryReturns,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.text)
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

// TestSentiment tests lexicon counting and the margin rule: a difference
// of exactly one is still neutral.
func TestSentiment(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name string
		text string
		want domain.Sentiment
	}{
		{
			name: "clearly positive",
			text: "Great product, excellent service, very happy with everything",
			want: domain.SentimentPositive,
		},
		{
			name: "clearly negative",
			text: "Terrible quality, awful packaging, I am very disappointed",
			want: domain.SentimentNegative,
		},
		{
			name: "no sentiment words",
			text: "Where is the invoice for order 12345?",
			want: domain.SentimentNeutral,
		},
		{
			name: "one positive word only is neutral",
			text: "The color is good I suppose",
			want: domain.SentimentNeutral,
		},
		{
			name: "one negative word only is neutral",
			text: "The strap is bad",
			want: domain.SentimentNeutral,
		},
		{
			name: "two negative one positive is neutral",
			text: "Good idea but terrible execution and awful shipping",
			want: domain.SentimentNeutral,
		},
		{
			name: "three negative one positive is negative",
			text: "Good idea but terrible execution, awful shipping, horrible support",
			want: domain.SentimentNegative,
		},
		{
			name: "equal counts are neutral",
			text: "The great screen makes up for the terrible battery",
			want: domain.SentimentNeutral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Sentiment(tt.text)
			if got != tt.want {
				t.Errorf("Sentiment(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

// TestPriority tests the urgency override and sentiment fallback.
func TestPriority(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name      string
		text      string
		sentiment domain.Sentiment
		want      domain.Priority
	}{
		{
			name:      "urgent keyword forces high",
			text:      "I need this resolved ASAP",
			sentiment: domain.SentimentNeutral,
			want:      domain.PriorityHigh,
		},
		{
			name:      "legal threat forces high",
			text:      "My lawyer will be in contact about this dispute",
			sentiment: domain.SentimentNeutral,
			want:      domain.PriorityHigh,
		},
		{
			name:      "urgency beats positive sentiment",
			text:      "Great item but I need it urgent for a wedding",
			sentiment: domain.SentimentPositive,
			want:      domain.PriorityHigh,
		},
		{
			name:      "negative sentiment without urgency is medium",
			text:      "Really disappointed with the quality",
			sentiment: domain.SentimentNegative,
			want:      domain.PriorityMedium,
		},
		{
			name:      "neutral text is normal",
			text:      "Could you confirm the measurements?",
			sentiment: domain.SentimentNeutral,
			want:      domain.PriorityNormal,
		},
		{
			name:      "positive text is normal",
			text:      "Love it, thank you!",
			sentiment: domain.SentimentPositive,
			want:      domain.PriorityNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Priority(tt.text, tt.sentiment)
			if got != tt.want {
				t.Errorf("Priority(%q, %v) = %v, want %v", tt.text, tt.sentiment, got, tt.want)
			}
		})
	}
}

// TestShouldEscalate tests the keyword substring check.
func TestShouldEscalate(t *testing.T) {
	classifier := NewClassifier()
	keywords := domain.DefaultAutoResponseSettings().EscalationKeywords

	tests := []struct {
		name     string
		text     string
		keywords []string
		want     bool
	}{
		{
			name:     "default keyword match",
			text:     "I will open a dispute if you do not respond",
			keywords: keywords,
			want:     true,
		},
		{
			name:     "case insensitive match",
			text:     "This looks like FRAUD to me",
			keywords: keywords,
			want:     true,
		},
		{
			name:     "substring inside a word still matches",
			text:     "refunding the difference would be fine",
			keywords: []string{"refund"},
			want:     true,
		},
		{
			name:     "no keyword present",
			text:     "What color options do you have?",
			keywords: keywords,
			want:     false,
		},
		{
			name:     "empty keyword list never escalates",
			text:     "lawyer dispute chargeback",
			keywords: nil,
			want:     false,
		},
		{
			name:     "blank keyword entries are ignored",
			text:     "anything at all",
			keywords: []string{"", ""},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.ShouldEscalate(tt.text, tt.keywords)
			if got != tt.want {
				t.Errorf("ShouldEscalate(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

// TestRenderTemplate tests placeholder substitution and the general fallback.
func TestRenderTemplate(t *testing.T) {
	fixed := time.Date(2024, time.March, 5, 14, 30, 45, 0, time.UTC)
	classifier := NewClassifierWithClock(func() time.Time { return fixed })

	templates := domain.ResponseTemplates{
		domain.CategoryGeneral:  "Hi {name}, thanks for reaching out on {date}.",
		domain.CategoryShipping: "Hi {name}, your order ships soon. Sent at {time}.",
	}

	t.Run("category template with name", func(t *testing.T) {
		got := classifier.RenderTemplate(domain.CategoryShipping, templates, "Alex")
		want := "Hi Alex, your order ships soon. Sent at 2:30:45 PM."
		if got != want {
			t.Errorf("RenderTemplate() = %q, want %q", got, want)
		}
	})

	t.Run("missing category falls back to general", func(t *testing.T) {
		got := classifier.RenderTemplate(domain.CategoryWarranty, templates, "Alex")
		want := "Hi Alex, thanks for reaching out on 3/5/2024."
		if got != want {
			t.Errorf("RenderTemplate() = %q, want %q", got, want)
		}
	})

	t.Run("empty name leaves placeholder", func(t *testing.T) {
		got := classifier.RenderTemplate(domain.CategoryShipping, templates, "")
		want := "Hi {name}, your order ships soon. Sent at 2:30:45 PM."
		if got != want {
			t.Errorf("RenderTemplate() = %q, want %q", got, want)
		}
	})

	t.Run("empty template map uses built-in defaults", func(t *testing.T) {
		got := classifier.RenderTemplate(domain.CategoryGeneral, nil, "Alex")
		if got == "" {
			t.Errorf("RenderTemplate() with nil templates returned empty string")
		}
	})
}

// TestWithinBusinessHours tests hour-granularity window checks and the
// weekdays-only switch.
func TestWithinBusinessHours(t *testing.T) {
	hours := domain.BusinessHours{Start: "09:00", End: "17:00"}

	tests := []struct {
		name         string
		now          time.Time
		hours        domain.BusinessHours
		weekdaysOnly bool
		want         bool
	}{
		{
			name: "weekday inside window",
			now:  time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC), // Tuesday
			want: true,
		},
		{
			name: "start hour boundary is inside",
			now:  time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "end hour boundary is inside",
			now:  time.Date(2024, time.March, 5, 17, 59, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "before opening",
			now:  time.Date(2024, time.March, 5, 8, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "after closing",
			now:  time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name:         "saturday blocked when weekdays only",
			now:          time.Date(2024, time.March, 9, 10, 0, 0, 0, time.UTC), // Saturday
			weekdaysOnly: true,
			want:         false,
		},
		{
			name: "saturday allowed when weekends enabled",
			now:  time.Date(2024, time.March, 9, 10, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name:  "unparseable window falls back to nine to five",
			now:   time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC),
			hours: domain.BusinessHours{Start: "soon", End: "late"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := NewClassifierWithClock(func() time.Time { return tt.now })
			h := tt.hours
			if h == (domain.BusinessHours{}) {
				h = hours
			}
			got := classifier.WithinBusinessHours(h, tt.weekdaysOnly)
			if got != tt.want {
				t.Errorf("WithinBusinessHours(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
