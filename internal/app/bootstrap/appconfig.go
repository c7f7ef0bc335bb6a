// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers framework-level settings (HTTP/HTTPS ports,
// TLS, logging, CORS, body size limits). AppConfig is everything specific
// to StudyHub: the Mongo connection, the auth provider, and the media
// object store.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Delegated identity configuration
	UserinfoURL      string        // Auth provider userinfo endpoint for bearer token verification
	IdentityCacheTTL time.Duration // How long verified tokens are cached

	// Media object store (S3-compatible) configuration
	MediaEndpoint      string // Object store endpoint (e.g., localhost:9000)
	MediaAccessKey     string // Access key
	MediaSecretKey     string // Secret key
	MediaBucket        string // Bucket for chat attachments
	MediaUseSSL        bool   // Connect to the object store over TLS
	MediaPublicBaseURL string // Public URL prefix for stored objects (blank serves off the endpoint)
}
