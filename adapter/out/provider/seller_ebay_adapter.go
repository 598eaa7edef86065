// Package provider implements marketplace API adapters.
package provider

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/out"
	"seller_server/pkg/httputil"
	"seller_server/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
)

// Trading API endpoints per environment. The auth endpoint is the OAuth
// token service used for refresh_token grants.
const (
	sandboxTradingURL    = "https://api.sandbox.ebay.com/ws/api"
	productionTradingURL = "https://api.ebay.com/ws/api"
	sandboxAuthURL       = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	productionAuthURL    = "https://api.ebay.com/identity/v1/oauth2/token"

	callGetMyMessages       = "GetMyMessages"
	callAddMemberMessageRTQ = "AddMemberMessageRTQ"

	ackSuccess = "Success"
	ackWarning = "Warning"
)

// Trading API error codes that mean the IAF token was rejected.
var tokenErrorCodes = map[string]bool{
	"931": true,
	"932": true,
}

// =============================================================================
// eBay Adapter
// =============================================================================

// EbayAdapter implements out.MarketplacePort against the eBay Trading API.
//
// The sandbox environment does not support Trading API messaging, so
// sandbox fetches return a fixed set of representative messages and sandbox
// replies succeed without a network call. Production traffic goes through a
// circuit breaker shared by all calls.
type EbayAdapter struct {
	tradingURL  string // override; empty derives from credential environment
	authURL     string
	siteID      string
	compatLevel string
	defaultEnv  domain.MarketplaceEnvironment
	client      *http.Client
	cb          *gobreaker.CircuitBreaker
}

// EbayConfig holds the adapter configuration. DefaultEnvironment applies to
// users whose stored credentials do not carry one.
type EbayConfig struct {
	TradingURL         string
	AuthURL            string
	SiteID             string
	CompatLevel        string
	DefaultEnvironment domain.MarketplaceEnvironment
}

func NewEbayAdapter(cfg *EbayConfig) *EbayAdapter {
	siteID := cfg.SiteID
	if siteID == "" {
		siteID = "0"
	}
	compat := cfg.CompatLevel
	if compat == "" {
		compat = "1285"
	}
	defaultEnv := cfg.DefaultEnvironment
	if defaultEnv == "" {
		defaultEnv = domain.EnvironmentSandbox
	}

	cbSettings := gobreaker.Settings{
		Name:        "ebay-trading-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &EbayAdapter{
		tradingURL:  cfg.TradingURL,
		authURL:     cfg.AuthURL,
		siteID:      siteID,
		compatLevel: compat,
		defaultEnv:  defaultEnv,
		client:      httputil.NewClient(httputil.TradingAPIClientConfig()),
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

var _ out.MarketplacePort = (*EbayAdapter)(nil)

// resolveEnv picks the environment for one call: the credential's own when
// set, the configured default otherwise.
func (a *EbayAdapter) resolveEnv(creds *domain.MarketplaceCredentials) domain.MarketplaceEnvironment {
	if creds.Environment != "" {
		return creds.Environment
	}
	return a.defaultEnv
}

func (a *EbayAdapter) endpointFor(env domain.MarketplaceEnvironment) string {
	if a.tradingURL != "" {
		return a.tradingURL
	}
	if env == domain.EnvironmentProduction {
		return productionTradingURL
	}
	return sandboxTradingURL
}

func (a *EbayAdapter) authEndpointFor(env domain.MarketplaceEnvironment) string {
	if a.authURL != "" {
		return a.authURL
	}
	if env == domain.EnvironmentProduction {
		return productionAuthURL
	}
	return sandboxAuthURL
}

// =============================================================================
// FetchMessages
// =============================================================================

func (a *EbayAdapter) FetchMessages(ctx context.Context, creds *domain.MarketplaceCredentials, opts *out.FetchOptions) (*out.FetchResult, error) {
	if opts == nil {
		opts = &out.FetchOptions{}
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.EntriesPerPage
	if perPage < 1 {
		perPage = 100
	}

	env := a.resolveEnv(creds)

	// Trading API messaging is unavailable in the sandbox.
	if env != domain.EnvironmentProduction {
		logger.Debug("[EbayAdapter] sandbox fetch, returning canned messages")
		return sandboxFetchResult(page), nil
	}

	req := getMyMessagesRequest{
		Xmlns:       ebayNamespace,
		Credentials: requesterCredentials{Token: creds.AccessToken},
		StartTime:   opts.StartTime.UTC().Format(time.RFC3339),
		EndTime:     opts.EndTime.UTC().Format(time.RFC3339),
		Pagination: &paginationRequest{
			EntriesPerPage: perPage,
			PageNumber:     page,
		},
		DetailLevel: "ReturnAll",
	}

	var resp getMyMessagesResponse
	if err := a.call(ctx, env, callGetMyMessages, req, &resp); err != nil {
		return nil, err
	}
	if err := classifyAck(resp.Ack, resp.Errors); err != nil {
		return nil, err
	}

	messages := normalizeMessages(resp.Messages.Message)
	hasMore := len(resp.Messages.Message) == perPage
	if resp.Pagination != nil && resp.Pagination.TotalPages > 0 {
		hasMore = page < resp.Pagination.TotalPages
	}

	total := len(messages)
	if resp.Pagination != nil && resp.Pagination.TotalEntries > 0 {
		total = resp.Pagination.TotalEntries
	}

	return &out.FetchResult{
		Messages: messages,
		Total:    total,
		Page:     page,
		HasMore:  hasMore,
	}, nil
}

// =============================================================================
// SendReply
// =============================================================================

func (a *EbayAdapter) SendReply(ctx context.Context, creds *domain.MarketplaceCredentials, reply *out.OutgoingReply) error {
	if reply.RecipientUsername == "" || reply.ItemID == "" {
		return out.NewMarketplaceError(out.MarketplaceErrUnsupported,
			"reply requires a recipient and an item reference", nil, false)
	}

	env := a.resolveEnv(creds)
	if env != domain.EnvironmentProduction {
		logger.Info("[EbayAdapter] sandbox reply to %s suppressed (no network call)", reply.RecipientUsername)
		return nil
	}

	req := addMemberMessageRequest{
		Xmlns:       ebayNamespace,
		Credentials: requesterCredentials{Token: creds.AccessToken},
		ItemID:      reply.ItemID,
		MemberMessage: memberMessage{
			Subject:         "Re: your question",
			Body:            reply.Body,
			ParentMessageID: reply.ParentExternalID,
			RecipientID:     reply.RecipientUsername,
		},
	}

	var resp addMemberMessageResponse
	if err := a.call(ctx, env, callAddMemberMessageRTQ, req, &resp); err != nil {
		return err
	}
	return classifyAck(resp.Ack, resp.Errors)
}

// =============================================================================
// RefreshCredentials
// =============================================================================

// RefreshCredentials runs an OAuth refresh_token grant against the identity
// service. eBay may or may not rotate the refresh token; the caller persists
// whatever comes back.
func (a *EbayAdapter) RefreshCredentials(ctx context.Context, creds *domain.MarketplaceCredentials) (*out.RefreshedToken, error) {
	if creds.RefreshToken == "" {
		return nil, out.NewMarketplaceError(out.MarketplaceErrRefreshFailed,
			"no refresh token available", nil, false)
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  a.authEndpointFor(a.resolveEnv(creds)),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	token, err := src.Token()
	if err != nil {
		return nil, out.NewMarketplaceError(out.MarketplaceErrRefreshFailed, "token refresh failed", err, false)
	}

	refreshed := &out.RefreshedToken{AccessToken: token.AccessToken}
	if token.RefreshToken != "" && token.RefreshToken != creds.RefreshToken {
		refreshed.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		refreshed.ExpiresIn = int(time.Until(token.Expiry).Seconds())
	}
	return refreshed, nil
}

// =============================================================================
// Transport
// =============================================================================

// call posts one Trading API request and decodes the response, routed
// through the circuit breaker.
func (a *EbayAdapter) call(ctx context.Context, env domain.MarketplaceEnvironment, callName string, reqBody any, respBody any) error {
	payload, err := xml.Marshal(reqBody)
	if err != nil {
		return out.NewMarketplaceError(out.MarketplaceErrServer, "failed to encode request", err, false)
	}
	payload = append([]byte(xml.Header), payload...)

	raw, err := a.cb.Execute(func() (any, error) {
		return a.post(ctx, a.endpointFor(env), callName, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return out.NewMarketplaceError(out.MarketplaceErrServer, "marketplace circuit open", err, true)
		}
		return err
	}

	if err := xml.Unmarshal(raw.([]byte), respBody); err != nil {
		return out.NewMarketplaceError(out.MarketplaceErrServer, "failed to decode response", err, false)
	}
	return nil
}

func (a *EbayAdapter) post(ctx context.Context, url, callName string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, out.NewMarketplaceError(out.MarketplaceErrNetwork, "failed to build request", err, false)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("X-EBAY-API-SITEID", a.siteID)
	req.Header.Set("X-EBAY-API-COMPATIBILITY-LEVEL", a.compatLevel)
	req.Header.Set("X-EBAY-API-CALL-NAME", callName)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, out.NewMarketplaceError(out.MarketplaceErrNetwork, "marketplace request failed", err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, out.NewMarketplaceError(out.MarketplaceErrNetwork, "failed to read response", err, true)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, out.NewMarketplaceError(out.MarketplaceErrTokenExpired, "access token rejected", nil, false)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, out.NewMarketplaceError(out.MarketplaceErrRateLimit, "marketplace rate limit", nil, true)
	case resp.StatusCode >= 500:
		return nil, out.NewMarketplaceError(out.MarketplaceErrServer,
			fmt.Sprintf("marketplace returned %d", resp.StatusCode), nil, true)
	case resp.StatusCode >= 400:
		return nil, out.NewMarketplaceError(out.MarketplaceErrServer,
			fmt.Sprintf("marketplace returned %d", resp.StatusCode), nil, false)
	}

	return body, nil
}

// classifyAck maps a non-success Ack to a marketplace error. Token error
// codes take precedence over everything else in the error list.
func classifyAck(ack string, errs []tradingError) error {
	if ack == ackSuccess || ack == ackWarning {
		return nil
	}

	for _, e := range errs {
		if tokenErrorCodes[e.ErrorCode] {
			return out.NewMarketplaceError(out.MarketplaceErrTokenExpired, "access token rejected", nil, false)
		}
	}

	msg := "marketplace call failed"
	if len(errs) > 0 {
		if errs[0].LongMessage != "" {
			msg = errs[0].LongMessage
		} else if errs[0].ShortMessage != "" {
			msg = errs[0].ShortMessage
		}
	}
	return out.NewMarketplaceError(out.MarketplaceErrServer, msg, nil, false)
}
