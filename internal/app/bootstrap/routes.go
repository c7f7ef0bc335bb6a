// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/studyhub/internal/app/chat"
	groupsfeature "github.com/dalemusser/studyhub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/studyhub/internal/app/features/health"
	messagesfeature "github.com/dalemusser/studyhub/internal/app/features/messages"
	"github.com/dalemusser/studyhub/internal/app/identity"
	"github.com/dalemusser/studyhub/internal/app/membership"
	"github.com/dalemusser/studyhub/internal/app/realtime"
	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	messagestore "github.com/dalemusser/studyhub/internal/app/store/messages"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/studyhub/internal/app/system/tasks"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. StudyHub wires the stores, the
// membership engine, the realtime feeds, and the identity provider, then
// mounts the JSON API behind bearer-token auth. Only the health endpoint
// is public.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	groups := groupstore.New(db)
	users := userstore.New(db)
	msgs := messagestore.New(db)

	engine := membership.New(deps.MongoClient, db, logger)
	chatSvc := chat.New(groups, users, msgs, logger)

	groupFeed := realtime.NewGroupFeed(realtime.GroupSourceFromStore(groups), logger)
	messageFeed := realtime.NewMessageFeed(realtime.MessageSourceFromStore(msgs), logger)

	provider := identity.NewProvider(appCfg.UserinfoURL, users, appCfg.IdentityCacheTTL, logger)

	deps.Tasks.Add(tasks.IdentityCachePruneJob(provider, logger))
	deps.Tasks.Start()

	// Join codes are short, so code guessing gets throttled per caller.
	joinGuard := ratelimit.Middleware(ratelimit.New(10, time.Minute), func(r *http.Request) string {
		if u, ok := identity.FromContext(r.Context()); ok {
			return u.Subject
		}
		return ratelimit.ClientIP(r)
	})

	groupsHandler := groupsfeature.NewHandler(engine, groupFeed, logger)
	messagesHandler := messagesfeature.NewHandler(chatSvc, messageFeed, deps.Media, groups, logger)
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators.
	r.Mount("/healthz", healthfeature.Routes(healthHandler))

	// Everything under /api requires a verified bearer token.
	r.Route("/api", func(r chi.Router) {
		r.Use(provider.Middleware)
		r.Mount("/groups", groupsfeature.Routes(groupsHandler, messagesHandler, joinGuard))
	})

	return r, nil
}
