// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for StudyHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, media_bucket, etc.
//   - Environment variables: STUDYHUB_MONGO_URI, STUDYHUB_MEDIA_BUCKET, etc.
//   - Command-line flags: --mongo_uri, --media_bucket, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "study_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Delegated identity
	{Name: "userinfo_url", Default: "", Desc: "Auth provider userinfo endpoint used to verify bearer tokens"},
	{Name: "identity_cache_ttl", Default: "5m", Desc: "How long verified bearer tokens are cached (e.g., 5m, 30s)"},

	// Media object store (chat attachments)
	{Name: "media_endpoint", Default: "localhost:9000", Desc: "S3-compatible object store endpoint"},
	{Name: "media_access_key", Default: "", Desc: "Object store access key"},
	{Name: "media_secret_key", Default: "", Desc: "Object store secret key"},
	{Name: "media_bucket", Default: "studyhub-attachments", Desc: "Bucket for chat attachments"},
	{Name: "media_use_ssl", Default: false, Desc: "Connect to the object store over TLS"},
	{Name: "media_public_base_url", Default: "", Desc: "Public URL prefix for stored objects (blank serves off the endpoint)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config
// files, environment variables (WAFFLE_* for core, STUDYHUB_* for app),
// command-line flags, and their precedence: flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STUDYHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		UserinfoURL:      appValues.String("userinfo_url"),
		IdentityCacheTTL: appValues.Duration("identity_cache_ttl", 5*time.Minute),

		MediaEndpoint:      appValues.String("media_endpoint"),
		MediaAccessKey:     appValues.String("media_access_key"),
		MediaSecretKey:     appValues.String("media_secret_key"),
		MediaBucket:        appValues.String("media_bucket"),
		MediaUseSSL:        appValues.Bool("media_use_ssl"),
		MediaPublicBaseURL: appValues.String("media_public_base_url"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// StudyHub validates the MongoDB URI format up front to catch
// configuration errors before attempting to connect, and requires the
// userinfo endpoint since every API request authenticates against it.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.UserinfoURL == "" {
		return fmt.Errorf("userinfo_url must be set (the auth provider's userinfo endpoint)")
	}

	return nil
}
