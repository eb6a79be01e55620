package identity

import "time"

// TokenConfig is a plain Config implementation for hosts that load their
// settings from flags, files, or the environment before handing them to us.
type TokenConfig struct {
	AccessTokenSecret  string        `json:"access_token_secret"`
	AccessTokenTTL     time.Duration `json:"access_token_ttl"`
	RefreshTokenSecret string        `json:"refresh_token_secret"`
	RefreshTokenTTL    time.Duration `json:"refresh_token_ttl"`
	HashCost           int           `json:"hash_cost"`
	Issuer             string        `json:"issuer"`
	Audience           []string      `json:"audience"`
}

var _ Config = (*TokenConfig)(nil)

func (c *TokenConfig) GetAccessTokenSecret() string { return c.AccessTokenSecret }

func (c *TokenConfig) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

func (c *TokenConfig) GetRefreshTokenSecret() string { return c.RefreshTokenSecret }

func (c *TokenConfig) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }

func (c *TokenConfig) GetHashCost() int { return c.HashCost }

func (c *TokenConfig) GetIssuer() string { return c.Issuer }

func (c *TokenConfig) GetAudience() []string { return c.Audience }
