// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenCachePruner is implemented by the identity provider.
type TokenCachePruner interface {
	PruneExpired() int
}

// IdentityCachePruneJob drops expired entries from the token cache so
// tokens that never recur do not pin memory.
func IdentityCachePruneJob(p TokenCachePruner, logger *zap.Logger) Job {
	return Job{
		Name:     "identity-cache-prune",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			if n := p.PruneExpired(); n > 0 {
				logger.Debug("pruned identity cache entries", zap.Int("count", n))
			}
			return nil
		},
	}
}
