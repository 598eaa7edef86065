package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"seller_server/core/domain"
	"seller_server/core/port/out"
	"seller_server/pkg/crypto"
	"seller_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// =============================================================================
// User Adapter (PostgreSQL)
// =============================================================================

// UserAdapter implements out.UserRepository using PostgreSQL. Marketplace
// tokens are encrypted at rest when an encryption key is configured.
type UserAdapter struct {
	db                *sqlx.DB
	encryptionEnabled bool
}

func NewUserAdapter(db *sqlx.DB) *UserAdapter {
	err := crypto.Init()
	encryptionEnabled := err == nil
	if !encryptionEnabled {
		logger.Warn("Credential encryption disabled: %v", err)
	} else {
		logger.Info("Credential encryption enabled")
	}

	return &UserAdapter{
		db:                db,
		encryptionEnabled: encryptionEnabled,
	}
}

var _ out.UserRepository = (*UserAdapter)(nil)

const userSelectColumns = `
	u.id, u.email, u.name, u.is_active, u.last_login,
	u.ebay_client_id, u.ebay_client_secret,
	u.ebay_access_token, u.ebay_refresh_token, u.ebay_environment,
	u.auto_response_enabled, u.response_delay,
	u.business_start, u.business_end, u.weekdays_only,
	u.max_daily_responses, u.escalation_keywords, u.templates,
	u.created_at, u.updated_at`

type userRow struct {
	ID        uuid.UUID    `db:"id"`
	Email     string       `db:"email"`
	Name      string       `db:"name"`
	IsActive  bool         `db:"is_active"`
	LastLogin sql.NullTime `db:"last_login"`

	EbayClientID     sql.NullString `db:"ebay_client_id"`
	EbayClientSecret sql.NullString `db:"ebay_client_secret"`
	EbayAccessToken  sql.NullString `db:"ebay_access_token"`
	EbayRefreshToken sql.NullString `db:"ebay_refresh_token"`
	EbayEnvironment  sql.NullString `db:"ebay_environment"`

	AutoResponseEnabled bool           `db:"auto_response_enabled"`
	ResponseDelay       int            `db:"response_delay"`
	BusinessStart       string         `db:"business_start"`
	BusinessEnd         string         `db:"business_end"`
	WeekdaysOnly        bool           `db:"weekdays_only"`
	MaxDailyResponses   int            `db:"max_daily_responses"`
	EscalationKeywords  pq.StringArray `db:"escalation_keywords"`
	Templates           []byte         `db:"templates"`

	CreatedAt sql.NullTime `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

func (a *UserAdapter) toDomain(r *userRow) *domain.User {
	user := &domain.User{
		ID:       r.ID,
		Email:    r.Email,
		Name:     r.Name,
		IsActive: r.IsActive,
		Settings: domain.AutoResponseSettings{
			Enabled:            r.AutoResponseEnabled,
			ResponseDelay:      r.ResponseDelay,
			BusinessHours:      domain.BusinessHours{Start: r.BusinessStart, End: r.BusinessEnd},
			WeekdaysOnly:       r.WeekdaysOnly,
			MaxDailyResponses:  r.MaxDailyResponses,
			EscalationKeywords: []string(r.EscalationKeywords),
		},
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if r.LastLogin.Valid {
		user.LastLogin = &r.LastLogin.Time
	}

	if len(r.Templates) > 0 {
		var templates domain.ResponseTemplates
		if err := json.Unmarshal(r.Templates, &templates); err != nil {
			logger.Warn("[UserAdapter.toDomain] invalid templates for user %s: %v", r.ID, err)
		} else {
			user.Settings.Templates = templates
		}
	}
	if user.Settings.Templates == nil {
		user.Settings.Templates = domain.DefaultAutoResponseSettings().Templates
	}

	if r.EbayClientID.Valid && r.EbayClientID.String != "" {
		user.Credentials = &domain.MarketplaceCredentials{
			ClientID:     r.EbayClientID.String,
			ClientSecret: a.decryptToken(r.EbayClientSecret.String),
			AccessToken:  a.decryptToken(r.EbayAccessToken.String),
			RefreshToken: a.decryptToken(r.EbayRefreshToken.String),
			Environment:  domain.MarketplaceEnvironment(r.EbayEnvironment.String),
		}
	}

	return user
}

// =============================================================================
// Queries
// =============================================================================

func (a *UserAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userSelectColumns + ` FROM users u WHERE u.id = $1`

	var row userRow
	if err := a.db.QueryRowxContext(ctx, query, id).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, out.ErrNotFound
		}
		return nil, err
	}
	return a.toDomain(&row), nil
}

// ListActiveWithCredentials returns users the poll worker should sync.
func (a *UserAdapter) ListActiveWithCredentials(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userSelectColumns + `
		FROM users u
		WHERE u.is_active = TRUE
		  AND u.ebay_access_token IS NOT NULL AND u.ebay_access_token <> ''
		ORDER BY u.created_at`

	var rows []userRow
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, a.toDomain(&rows[i]))
	}
	return users, nil
}

// =============================================================================
// Updates
// =============================================================================

// UpdateTokens persists rotated credentials. refreshToken may be empty when
// the marketplace did not rotate it; the stored value is kept in that case.
func (a *UserAdapter) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string) error {
	encAccess := a.encryptToken(accessToken)

	var (
		result sql.Result
		err    error
	)
	if refreshToken != "" {
		result, err = a.db.ExecContext(ctx, `
			UPDATE users SET
				ebay_access_token = $1,
				ebay_refresh_token = $2,
				updated_at = NOW()
			WHERE id = $3`,
			encAccess, a.encryptToken(refreshToken), id)
	} else {
		result, err = a.db.ExecContext(ctx, `
			UPDATE users SET
				ebay_access_token = $1,
				updated_at = NOW()
			WHERE id = $2`,
			encAccess, id)
	}
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return out.ErrNotFound
	}
	return nil
}

func (a *UserAdapter) UpdateSettings(ctx context.Context, id uuid.UUID, settings *domain.AutoResponseSettings) error {
	templates, err := json.Marshal(settings.Templates)
	if err != nil {
		return err
	}

	result, err := a.db.ExecContext(ctx, `
		UPDATE users SET
			auto_response_enabled = $1,
			response_delay = $2,
			business_start = $3,
			business_end = $4,
			weekdays_only = $5,
			max_daily_responses = $6,
			escalation_keywords = $7,
			templates = $8,
			updated_at = NOW()
		WHERE id = $9`,
		settings.Enabled, settings.ResponseDelay,
		settings.BusinessHours.Start, settings.BusinessHours.End,
		settings.WeekdaysOnly, settings.MaxDailyResponses,
		pq.StringArray(settings.EscalationKeywords), templates, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return out.ErrNotFound
	}
	return nil
}

// =============================================================================
// Token encryption helpers
// =============================================================================

func (a *UserAdapter) encryptToken(token string) string {
	if !a.encryptionEnabled || token == "" {
		return token
	}
	encrypted, err := crypto.EncryptToken(token)
	if err != nil {
		logger.Warn("Failed to encrypt token: %v", err)
		return token
	}
	return encrypted
}

func (a *UserAdapter) decryptToken(token string) string {
	if token == "" || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := crypto.DecryptToken(token)
	if err != nil {
		// Legacy plaintext value that happened to look encrypted.
		return token
	}
	return decrypted
}
