package provider

import (
	"encoding/xml"
	"strings"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/out"
)

const ebayNamespace = "urn:ebay:apis:eBLBaseComponents"

// =============================================================================
// Request types
// =============================================================================

type requesterCredentials struct {
	Token string `xml:"eBayAuthToken"`
}

type paginationRequest struct {
	EntriesPerPage int `xml:"EntriesPerPage"`
	PageNumber     int `xml:"PageNumber"`
}

type getMyMessagesRequest struct {
	XMLName     xml.Name             `xml:"GetMyMessagesRequest"`
	Xmlns       string               `xml:"xmlns,attr"`
	Credentials requesterCredentials `xml:"RequesterCredentials"`
	StartTime   string               `xml:"StartTime,omitempty"`
	EndTime     string               `xml:"EndTime,omitempty"`
	Pagination  *paginationRequest   `xml:"Pagination,omitempty"`
	DetailLevel string               `xml:"DetailLevel"`
}

type memberMessage struct {
	Subject         string `xml:"Subject,omitempty"`
	Body            string `xml:"Body"`
	ParentMessageID string `xml:"ParentMessageID,omitempty"`
	RecipientID     string `xml:"RecipientID"`
}

type addMemberMessageRequest struct {
	XMLName       xml.Name             `xml:"AddMemberMessageRTQRequest"`
	Xmlns         string               `xml:"xmlns,attr"`
	Credentials   requesterCredentials `xml:"RequesterCredentials"`
	ItemID        string               `xml:"ItemID"`
	MemberMessage memberMessage        `xml:"MemberMessage"`
}

// =============================================================================
// Response types
// =============================================================================

type tradingError struct {
	ErrorCode    string `xml:"ErrorCode"`
	ShortMessage string `xml:"ShortMessage"`
	LongMessage  string `xml:"LongMessage"`
	Severity     string `xml:"SeverityCode"`
}

type paginationResult struct {
	TotalEntries int `xml:"TotalNumberOfEntries"`
	TotalPages   int `xml:"TotalNumberOfPages"`
}

// tradingMessage is one Message element of a GetMyMessages response. Raw
// keeps the original inner XML for the audit archive.
type tradingMessage struct {
	MessageID    string `xml:"MessageID"`
	QuestionID   string `xml:"QuestionID"`
	Sender       string `xml:"Sender"`
	Recipient    string `xml:"RecipientUserID"`
	Subject      string `xml:"Subject"`
	Body         string `xml:"Text"`
	ItemID       string `xml:"ItemID"`
	MessageType  string `xml:"MessageType"`
	CreationDate string `xml:"CreationDate"`
	ReceiveDate  string `xml:"ReceiveDate"`
	Raw          []byte `xml:",innerxml"`
}

type messageContainer struct {
	Message []tradingMessage `xml:"Message"`
}

type getMyMessagesResponse struct {
	XMLName    xml.Name          `xml:"GetMyMessagesResponse"`
	Ack        string            `xml:"Ack"`
	Errors     []tradingError    `xml:"Errors"`
	Messages   messageContainer  `xml:"Messages"`
	Pagination *paginationResult `xml:"PaginationResult"`
}

type addMemberMessageResponse struct {
	XMLName xml.Name       `xml:"AddMemberMessageRTQResponse"`
	Ack     string         `xml:"Ack"`
	Errors  []tradingError `xml:"Errors"`
}

// =============================================================================
// Normalization
// =============================================================================

// normalizeMessages converts Trading API messages to the canonical shape,
// dropping in-page duplicates by external ID.
func normalizeMessages(msgs []tradingMessage) []out.RawMessage {
	seen := make(map[string]bool, len(msgs))
	result := make([]out.RawMessage, 0, len(msgs))

	for i := range msgs {
		m := &msgs[i]
		if m.MessageID == "" || seen[m.MessageID] {
			continue
		}
		seen[m.MessageID] = true
		result = append(result, normalizeMessage(m))
	}
	return result
}

func normalizeMessage(m *tradingMessage) out.RawMessage {
	threadID := m.QuestionID
	if threadID == "" {
		threadID = m.MessageID
	}

	senderType := determineSenderType(m.MessageType, m.Sender)

	return out.RawMessage{
		ExternalID:        m.MessageID,
		ThreadID:          threadID,
		SenderUsername:    m.Sender,
		RecipientUsername: m.Recipient,
		SenderType:        senderType,
		IsSystem:          senderType == domain.SenderSystem,
		Subject:           m.Subject,
		MessageText:       m.Body,
		ItemID:            m.ItemID,
		MessageType:       m.MessageType,
		SourceTimestamp:   parseEbayTime(m.CreationDate, m.ReceiveDate),
		Raw:               append([]byte(nil), m.Raw...),
	}
}

// determineSenderType classifies who sent a message. System message types
// and the "ebay" sender name mean the marketplace itself; the
// ask-seller-question flow and any other named sender mean a buyer.
func determineSenderType(messageType, sender string) domain.SenderType {
	if strings.Contains(messageType, "System") || strings.EqualFold(sender, "ebay") {
		return domain.SenderSystem
	}
	if messageType == "AskSellerQuestion" {
		return domain.SenderBuyer
	}
	if sender != "" {
		return domain.SenderBuyer
	}
	return domain.SenderUnknown
}

// parseEbayTime accepts the first parseable of the candidate timestamps,
// falling back to now so a message without one still sorts somewhere sane.
func parseEbayTime(candidates ...string) time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, c); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// =============================================================================
// Sandbox data
// =============================================================================

// sandboxFetchResult mimics a production fetch for development accounts.
// The fixed IDs make repeat syncs exercise the dedup path.
func sandboxFetchResult(page int) *out.FetchResult {
	if page > 1 {
		return &out.FetchResult{Page: page}
	}

	now := time.Now().UTC()
	messages := []out.RawMessage{
		{
			ExternalID:        "sandbox-msg-001",
			ThreadID:          "sandbox-thread-001",
			SenderUsername:    "test_buyer_1",
			RecipientUsername: "test_seller",
			SenderType:        domain.SenderBuyer,
			Subject:           "Question about shipping",
			MessageText:       "Hi, when will this item ship? I need it by Friday. Thanks!",
			ItemID:            "123456789",
			MessageType:       "AskSellerQuestion",
			SourceTimestamp:   now.Add(-2 * time.Hour),
			Raw:               []byte(`<Message><MessageID>sandbox-msg-001</MessageID><Mock>true</Mock></Message>`),
		},
		{
			ExternalID:        "sandbox-msg-002",
			ThreadID:          "sandbox-thread-002",
			SenderUsername:    "test_buyer_2",
			RecipientUsername: "test_seller",
			SenderType:        domain.SenderBuyer,
			Subject:           "Return request",
			MessageText:       "I received the item but it doesn't match the description. How can I return it?",
			ItemID:            "987654321",
			MessageType:       "AskSellerQuestion",
			SourceTimestamp:   now.Add(-5 * time.Hour),
			Raw:               []byte(`<Message><MessageID>sandbox-msg-002</MessageID><Mock>true</Mock></Message>`),
		},
		{
			ExternalID:        "sandbox-msg-003",
			ThreadID:          "sandbox-thread-003",
			SenderUsername:    "ebay",
			RecipientUsername: "test_seller",
			SenderType:        domain.SenderSystem,
			IsSystem:          true,
			Subject:           "Payment received notification",
			MessageText:       "You have received payment for item #123456789. The buyer has paid $25.99.",
			ItemID:            "123456789",
			MessageType:       "SystemMessage",
			SourceTimestamp:   now.Add(-24 * time.Hour),
			Raw:               []byte(`<Message><MessageID>sandbox-msg-003</MessageID><Mock>true</Mock></Message>`),
		},
	}

	return &out.FetchResult{
		Messages: messages,
		Total:    len(messages),
		Page:     1,
		HasMore:  false,
	}
}
