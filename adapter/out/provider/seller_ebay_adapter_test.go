package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/out"
)

func prodCreds(env ...domain.MarketplaceEnvironment) *domain.MarketplaceCredentials {
	e := domain.EnvironmentProduction
	if len(env) > 0 {
		e = env[0]
	}
	return &domain.MarketplaceCredentials{
		ClientID:     "client",
		ClientSecret: "secret",
		AccessToken:  "v^1.1#token",
		RefreshToken: "v^1.1#refresh",
		Environment:  e,
	}
}

const getMyMessagesXML = `<?xml version="1.0" encoding="UTF-8"?>
<GetMyMessagesResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Ack>Success</Ack>
  <Messages>
    <Message>
      <Sender>happy_buyer</Sender>
      <RecipientUserID>the_seller</RecipientUserID>
      <Subject>Will this fit a 2015 model?</Subject>
      <MessageID>118</MessageID>
      <QuestionID>556677</QuestionID>
      <MessageType>AskSellerQuestion</MessageType>
      <ItemID>110043671232</ItemID>
      <Text>Hello, does this part fit the 2015 model? Thanks</Text>
      <ReceiveDate>2024-03-01T10:15:00.000Z</ReceiveDate>
      <CreationDate>2024-03-01T10:15:00.000Z</CreationDate>
    </Message>
    <Message>
      <Sender>eBay</Sender>
      <RecipientUserID>the_seller</RecipientUserID>
      <Subject>Your item sold!</Subject>
      <MessageID>119</MessageID>
      <MessageType>SystemMessage</MessageType>
      <Text>Congratulations, your item sold.</Text>
      <CreationDate>2024-03-01T11:00:00.000Z</CreationDate>
    </Message>
    <Message>
      <Sender>happy_buyer</Sender>
      <MessageID>118</MessageID>
      <MessageType>AskSellerQuestion</MessageType>
      <Text>duplicate of the first message</Text>
    </Message>
  </Messages>
  <PaginationResult>
    <TotalNumberOfEntries>2</TotalNumberOfEntries>
    <TotalNumberOfPages>1</TotalNumberOfPages>
  </PaginationResult>
</GetMyMessagesResponse>`

const tokenExpiredXML = `<?xml version="1.0" encoding="UTF-8"?>
<GetMyMessagesResponse xmlns="urn:ebay:apis:eBLBaseComponents">
  <Ack>Failure</Ack>
  <Errors>
    <ShortMessage>Auth token is invalid.</ShortMessage>
    <LongMessage>Validation of the authentication token in API request failed.</LongMessage>
    <ErrorCode>931</ErrorCode>
    <SeverityCode>Error</SeverityCode>
  </Errors>
</GetMyMessagesResponse>`

func TestFetchMessagesParsesAndNormalizes(t *testing.T) {
	var gotCallName, gotCompat string
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCallName = r.Header.Get("X-EBAY-API-CALL-NAME")
		gotCompat = r.Header.Get("X-EBAY-API-COMPATIBILITY-LEVEL")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(getMyMessagesXML))
	}))
	defer server.Close()

	adapter := NewEbayAdapter(&EbayConfig{TradingURL: server.URL})
	result, err := adapter.FetchMessages(context.Background(), prodCreds(), &out.FetchOptions{
		StartTime:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Page:           1,
		EntriesPerPage: 100,
	})
	if err != nil {
		t.Fatalf("FetchMessages() error = %v", err)
	}

	if gotCallName != "GetMyMessages" {
		t.Errorf("call name header = %q, want GetMyMessages", gotCallName)
	}
	if gotCompat != "1285" {
		t.Errorf("compatibility header = %q, want 1285", gotCompat)
	}
	for _, want := range []string{"<eBayAuthToken>v^1.1#token</eBayAuthToken>", "<EntriesPerPage>100</EntriesPerPage>", "<DetailLevel>ReturnAll</DetailLevel>"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %q:\n%s", want, gotBody)
		}
	}

	// The duplicate MessageID 118 is dropped.
	if len(result.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(result.Messages))
	}
	if result.HasMore {
		t.Errorf("HasMore = true, want false with a single page")
	}

	buyer := result.Messages[0]
	if buyer.ExternalID != "118" || buyer.SenderType != domain.SenderBuyer || buyer.IsSystem {
		t.Errorf("buyer message normalized wrong: %+v", buyer)
	}
	if buyer.ThreadID != "556677" {
		t.Errorf("ThreadID = %q, want QuestionID 556677", buyer.ThreadID)
	}
	if buyer.ItemID != "110043671232" {
		t.Errorf("ItemID = %q", buyer.ItemID)
	}
	if buyer.SourceTimestamp.IsZero() || buyer.SourceTimestamp.Year() != 2024 {
		t.Errorf("SourceTimestamp not parsed: %v", buyer.SourceTimestamp)
	}
	if len(buyer.Raw) == 0 || !strings.Contains(string(buyer.Raw), "MessageID") {
		t.Errorf("Raw payload not captured")
	}

	system := result.Messages[1]
	if system.SenderType != domain.SenderSystem || !system.IsSystem {
		t.Errorf("system message normalized wrong: %+v", system)
	}
	// No QuestionID: thread falls back to the message ID.
	if system.ThreadID != "119" {
		t.Errorf("system ThreadID = %q, want 119", system.ThreadID)
	}
}

func TestFetchMessagesTokenErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tokenExpiredXML))
	}))
	defer server.Close()

	adapter := NewEbayAdapter(&EbayConfig{TradingURL: server.URL})
	_, err := adapter.FetchMessages(context.Background(), prodCreds(), &out.FetchOptions{Page: 1, EntriesPerPage: 10})
	if !out.IsTokenExpired(err) {
		t.Errorf("error = %v, want token_expired", err)
	}
}

func TestFetchMessagesHTTPUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := NewEbayAdapter(&EbayConfig{TradingURL: server.URL})
	_, err := adapter.FetchMessages(context.Background(), prodCreds(), nil)
	if !out.IsTokenExpired(err) {
		t.Errorf("error = %v, want token_expired", err)
	}
}

func TestFetchMessagesSandboxReturnsCannedData(t *testing.T) {
	adapter := NewEbayAdapter(&EbayConfig{})
	result, err := adapter.FetchMessages(context.Background(), prodCreds(domain.EnvironmentSandbox), &out.FetchOptions{Page: 1})
	if err != nil {
		t.Fatalf("FetchMessages() error = %v", err)
	}
	if len(result.Messages) != 3 {
		t.Fatalf("sandbox messages = %d, want 3", len(result.Messages))
	}
	if result.HasMore {
		t.Errorf("sandbox HasMore = true, want false")
	}

	// Same IDs every time so repeated syncs hit the dedup path.
	again, _ := adapter.FetchMessages(context.Background(), prodCreds(domain.EnvironmentSandbox), &out.FetchOptions{Page: 1})
	if again.Messages[0].ExternalID != result.Messages[0].ExternalID {
		t.Errorf("sandbox IDs changed across fetches")
	}

	var systemCount int
	for _, m := range result.Messages {
		if m.IsSystem {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Errorf("sandbox system messages = %d, want 1", systemCount)
	}
}

func TestFetchMessagesUsesDefaultEnvironment(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(getMyMessagesXML))
	}))
	defer server.Close()

	creds := prodCreds()
	creds.Environment = ""

	// No stored environment and no configured default: sandbox behavior.
	adapter := NewEbayAdapter(&EbayConfig{TradingURL: server.URL})
	result, err := adapter.FetchMessages(context.Background(), creds, &out.FetchOptions{Page: 1})
	if err != nil {
		t.Fatalf("FetchMessages() error = %v", err)
	}
	if called {
		t.Errorf("network call made, want canned sandbox data")
	}
	if len(result.Messages) == 0 {
		t.Errorf("sandbox fallback returned no messages")
	}

	// Configured production default applies when credentials carry none.
	adapter = NewEbayAdapter(&EbayConfig{TradingURL: server.URL, DefaultEnvironment: domain.EnvironmentProduction})
	if _, err := adapter.FetchMessages(context.Background(), creds, &out.FetchOptions{Page: 1}); err != nil {
		t.Fatalf("FetchMessages() error = %v", err)
	}
	if !called {
		t.Errorf("production default ignored, no network call made")
	}
}

func TestSendReplyProduction(t *testing.T) {
	var gotCallName, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCallName = r.Header.Get("X-EBAY-API-CALL-NAME")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`<?xml version="1.0"?><AddMemberMessageRTQResponse xmlns="urn:ebay:apis:eBLBaseComponents"><Ack>Success</Ack></AddMemberMessageRTQResponse>`))
	}))
	defer server.Close()

	adapter := NewEbayAdapter(&EbayConfig{TradingURL: server.URL})
	err := adapter.SendReply(context.Background(), prodCreds(), &out.OutgoingReply{
		RecipientUsername: "happy_buyer",
		ItemID:            "110043671232",
		ParentExternalID:  "118",
		Body:              "Yes, it fits the 2015 model.",
	})
	if err != nil {
		t.Fatalf("SendReply() error = %v", err)
	}

	if gotCallName != "AddMemberMessageRTQ" {
		t.Errorf("call name header = %q, want AddMemberMessageRTQ", gotCallName)
	}
	for _, want := range []string{"<RecipientID>happy_buyer</RecipientID>", "<ItemID>110043671232</ItemID>", "<ParentMessageID>118</ParentMessageID>"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %q", want)
		}
	}
}

func TestSendReplyRejectsIncompleteTarget(t *testing.T) {
	adapter := NewEbayAdapter(&EbayConfig{})
	err := adapter.SendReply(context.Background(), prodCreds(), &out.OutgoingReply{Body: "hi"})
	if !out.IsUnsupported(err) {
		t.Errorf("error = %v, want unsupported", err)
	}
}

func TestSendReplySandboxIsNoop(t *testing.T) {
	adapter := NewEbayAdapter(&EbayConfig{TradingURL: "http://127.0.0.1:1"})
	err := adapter.SendReply(context.Background(), prodCreds(domain.EnvironmentSandbox), &out.OutgoingReply{
		RecipientUsername: "buyer",
		ItemID:            "1",
		Body:              "hi",
	})
	if err != nil {
		t.Errorf("sandbox SendReply() error = %v, want nil without network", err)
	}
}

func TestRefreshCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":7200}`))
	}))
	defer server.Close()

	adapter := NewEbayAdapter(&EbayConfig{AuthURL: server.URL})
	refreshed, err := adapter.RefreshCredentials(context.Background(), prodCreds())
	if err != nil {
		t.Fatalf("RefreshCredentials() error = %v", err)
	}
	if refreshed.AccessToken != "new-access" {
		t.Errorf("AccessToken = %q, want new-access", refreshed.AccessToken)
	}
	// eBay did not rotate the refresh token.
	if refreshed.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty when not rotated", refreshed.RefreshToken)
	}
	if refreshed.ExpiresIn <= 0 {
		t.Errorf("ExpiresIn = %d, want positive", refreshed.ExpiresIn)
	}
}

func TestRefreshCredentialsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	adapter := NewEbayAdapter(&EbayConfig{AuthURL: server.URL})
	_, err := adapter.RefreshCredentials(context.Background(), prodCreds())
	if !out.IsMarketplaceCode(err, out.MarketplaceErrRefreshFailed) {
		t.Errorf("error = %v, want refresh_failed", err)
	}
}

func TestDetermineSenderType(t *testing.T) {
	tests := []struct {
		name        string
		messageType string
		sender      string
		want        domain.SenderType
	}{
		{"system message type", "SystemMessage", "someone", domain.SenderSystem},
		{"ebay sender any case", "ContactEbayMember", "eBay", domain.SenderSystem},
		{"ask seller question", "AskSellerQuestion", "buyer9", domain.SenderBuyer},
		{"named sender defaults to buyer", "ContactEbayMember", "member3", domain.SenderBuyer},
		{"nothing known", "", "", domain.SenderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineSenderType(tt.messageType, tt.sender); got != tt.want {
				t.Errorf("determineSenderType(%q, %q) = %v, want %v", tt.messageType, tt.sender, got, tt.want)
			}
		})
	}
}
