// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/studyhub/internal/app/system/timeouts"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. StudyHub
// makes sure the attachment bucket exists so the first upload does not pay
// for bucket creation.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeout overrides applied", zap.Int("count", n))
	}

	if err := deps.Media.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure attachment bucket %q: %w", appCfg.MediaBucket, err)
	}
	logger.Info("attachment bucket ready", zap.String("bucket", appCfg.MediaBucket))
	return nil
}
