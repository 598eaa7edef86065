// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"errors"
	"time"

	"seller_server/core/domain"
)

// =============================================================================
// Marketplace Port (eBay)
// =============================================================================

// MarketplacePort is the outbound port for the marketplace messaging API.
type MarketplacePort interface {
	// FetchMessages pulls raw messages for the given time window and page,
	// normalized into the canonical RawMessage shape.
	FetchMessages(ctx context.Context, creds *domain.MarketplaceCredentials, opts *FetchOptions) (*FetchResult, error)

	// SendReply sends a reply to a buyer message. Callers must check
	// repliability before calling; the adapter still rejects unsupported
	// targets with ErrUnsupported.
	SendReply(ctx context.Context, creds *domain.MarketplaceCredentials, reply *OutgoingReply) error

	// RefreshCredentials exchanges the refresh token for a new access token.
	// Failure maps to ErrRefreshFailed and is terminal for the current run.
	RefreshCredentials(ctx context.Context, creds *domain.MarketplaceCredentials) (*RefreshedToken, error)
}

// FetchOptions bounds a message fetch.
type FetchOptions struct {
	StartTime      time.Time
	EndTime        time.Time
	Page           int
	EntriesPerPage int
}

// FetchResult is one page of normalized messages.
type FetchResult struct {
	Messages []RawMessage
	Total    int
	Page     int
	HasMore  bool
}

// RawMessage is the canonical normalized shape of a fetched marketplace
// message. Downstream code never sees marketplace-specific payloads; the
// original payload is carried opaquely in Raw for archiving.
type RawMessage struct {
	ExternalID        string
	ThreadID          string
	SenderUsername    string
	RecipientUsername string
	SenderType        domain.SenderType
	IsSystem          bool
	Subject           string
	MessageText       string
	ItemID            string
	MessageType       string
	SourceTimestamp   time.Time
	Raw               []byte
}

// OutgoingReply is a reply to a specific buyer message.
type OutgoingReply struct {
	RecipientUsername string
	ItemID            string
	ParentExternalID  string
	Body              string
}

// RefreshedToken is the result of a credential refresh. RefreshToken is
// empty when the marketplace did not rotate it.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// =============================================================================
// Marketplace Error
// =============================================================================

// MarketplaceErrorCode classifies marketplace failures.
type MarketplaceErrorCode string

const (
	MarketplaceErrTokenExpired  MarketplaceErrorCode = "token_expired"
	MarketplaceErrRefreshFailed MarketplaceErrorCode = "refresh_failed"
	MarketplaceErrRateLimit     MarketplaceErrorCode = "rate_limit"
	MarketplaceErrNotFound      MarketplaceErrorCode = "not_found"
	MarketplaceErrNetwork       MarketplaceErrorCode = "network_error"
	MarketplaceErrServer        MarketplaceErrorCode = "server_error"
	MarketplaceErrUnsupported   MarketplaceErrorCode = "unsupported"
)

// MarketplaceError is a classified marketplace failure.
type MarketplaceError struct {
	Code      MarketplaceErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *MarketplaceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *MarketplaceError) Unwrap() error {
	return e.Err
}

// NewMarketplaceError creates a classified marketplace error.
func NewMarketplaceError(code MarketplaceErrorCode, message string, err error, retryable bool) *MarketplaceError {
	return &MarketplaceError{
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}

// IsMarketplaceCode reports whether err is a MarketplaceError with the code.
func IsMarketplaceCode(err error, code MarketplaceErrorCode) bool {
	var me *MarketplaceError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsTokenExpired reports whether err means the access token was rejected.
func IsTokenExpired(err error) bool {
	return IsMarketplaceCode(err, MarketplaceErrTokenExpired)
}

// IsRetryable reports whether err is a transient marketplace failure that a
// later run can be expected to get past.
func IsRetryable(err error) bool {
	var me *MarketplaceError
	return errors.As(err, &me) && me.Retryable
}

// IsUnsupported reports whether err means the target message cannot receive
// this operation.
func IsUnsupported(err error) bool {
	return IsMarketplaceCode(err, MarketplaceErrUnsupported)
}
