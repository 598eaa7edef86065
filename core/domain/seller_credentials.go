package domain

// MarketplaceEnvironment selects the marketplace endpoint family.
type MarketplaceEnvironment string

const (
	EnvironmentSandbox    MarketplaceEnvironment = "sandbox"
	EnvironmentProduction MarketplaceEnvironment = "production"
)

// MarketplaceCredentials holds one seller's eBay API credentials. The access
// token is short-lived; on rejection the pipeline performs exactly one
// refresh-and-retry using the refresh token before surfacing the failure.
type MarketplaceCredentials struct {
	ClientID     string                 `json:"client_id"`
	ClientSecret string                 `json:"client_secret"`
	AccessToken  string                 `json:"-"`
	RefreshToken string                 `json:"-"`
	Environment  MarketplaceEnvironment `json:"environment"`
}

// Complete reports whether the credentials are usable for fetching.
func (c *MarketplaceCredentials) Complete() bool {
	return c != nil && c.AccessToken != ""
}

// Refreshable reports whether a refresh attempt is even possible.
func (c *MarketplaceCredentials) Refreshable() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}
