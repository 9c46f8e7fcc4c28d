package config

import (
	"time"

	pkgconfig "github.com/Skotchmaster/quiz_platform/pkg/config"
	"github.com/Skotchmaster/quiz_platform/pkg/tokens"
	"github.com/joho/godotenv"
)

type Config struct {
	pkgconfig.Config

	Tokens tokens.Config

	ElasticIndex string

	// AuthRateLimit is requests per second per client IP on /auth routes.
	AuthRateLimit float64

	// BootstrapAdminEmail and BootstrapAdminPassword create the first admin
	// account on startup when both are set and the email is not taken.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// LoadEnv reads dotenv files into the process environment. Variables that are
// already set win.
func LoadEnv(files ...string) error {
	return godotenv.Load(files...)
}

// Load never fails on missing JWT settings: the token service reports them
// per call so the process can still serve health and metrics.
func Load() Config {
	return Config{
		Config: pkgconfig.Load(),
		Tokens: tokens.Config{
			SigningKey:      []byte(pkgconfig.EnvDefault("JWT_SIGNING_KEY", "")),
			Issuer:          pkgconfig.EnvDefault("JWT_ISSUER", ""),
			Audience:        pkgconfig.EnvDefault("JWT_AUDIENCE", ""),
			AccessLifetime:  time.Duration(pkgconfig.EnvIntDefault("JWT_ACCESS_TOKEN_MINUTES", 0)) * time.Minute,
			RefreshLifetime: time.Duration(pkgconfig.EnvIntDefault("JWT_REFRESH_TOKEN_DAYS", 0)) * 24 * time.Hour,
		},
		ElasticIndex:           pkgconfig.EnvDefault("ES_INDEX", "quiz_users"),
		AuthRateLimit:          float64(pkgconfig.EnvIntDefault("AUTH_RATE_LIMIT", 10)),
		BootstrapAdminEmail:    pkgconfig.EnvDefault("ADMIN_EMAIL", ""),
		BootstrapAdminPassword: pkgconfig.EnvDefault("ADMIN_PASSWORD", ""),
	}
}
