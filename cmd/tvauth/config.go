package main

import "time"

// Config holds server configuration loaded from environment variables.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	RedisURL string `envconfig:"REDIS_URL" required:"true"`

	// BaseURL is the public URL of this service; it is embedded in the
	// QR-encoded verification URI and the post-consent redirect.
	BaseURL string `envconfig:"BASE_URL" required:"true"`

	// TokenPepper is the server-wide digest secret. It is never stored
	// alongside the data it protects and never logged.
	TokenPepper string `envconfig:"TOKEN_PEPPER" required:"true"`

	DropboxAppKey    string `envconfig:"DROPBOX_APP_KEY" required:"true"`
	DropboxAppSecret string `envconfig:"DROPBOX_APP_SECRET" required:"true"`
	DropboxAuthURL   string `envconfig:"DROPBOX_AUTH_URL" default:"https://www.dropbox.com/oauth2/authorize"`
	DropboxTokenURL  string `envconfig:"DROPBOX_TOKEN_URL" default:"https://api.dropboxapi.com/oauth2/token"`

	// RedirectURL defaults to BaseURL + /api/auth/callback when empty.
	RedirectURL string `envconfig:"REDIRECT_URL"`

	ProviderTimeout   time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}
