// internal/app/identity/identity.go
//
// Package identity authenticates API requests with bearer tokens issued by
// the managed auth provider. Tokens are verified against the provider's
// userinfo endpoint; the returned profile is upserted into the users
// collection so the rest of the app works with local ObjectIDs.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var ErrUnauthenticated = errors.New("missing or invalid bearer token")

type ctxKey struct{}

// userInfo is the subset of the provider's userinfo response we use.
type userInfo struct {
	Subject string `json:"sub"`
	ID      string `json:"id"` // some providers use id instead of sub
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

func (u userInfo) subject() string {
	if u.Subject != "" {
		return u.Subject
	}
	return u.ID
}

type cacheEntry struct {
	user    models.User
	expires time.Time
}

// UserUpserter is the slice of the user store the provider needs. It is
// satisfied by *userstore.Store.
type UserUpserter interface {
	UpsertBySubject(ctx context.Context, subject, fullName, email, avatarURL string) (*models.User, error)
}

var _ UserUpserter = (*userstore.Store)(nil)

// Provider verifies tokens and resolves them to local user records.
// Verified tokens are cached briefly so a chatty client does not hit the
// userinfo endpoint on every request.
type Provider struct {
	userinfoURL string
	users       UserUpserter
	ttl         time.Duration
	log         *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewProvider(userinfoURL string, users UserUpserter, ttl time.Duration, log *zap.Logger) *Provider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Provider{
		userinfoURL: userinfoURL,
		users:       users,
		ttl:         ttl,
		log:         log,
		cache:       map[string]cacheEntry{},
	}
}

// Resolve verifies the bearer token and returns the local user, creating
// the user record on first sight.
func (p *Provider) Resolve(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrUnauthenticated
	}

	p.mu.Lock()
	if e, ok := p.cache[token]; ok && time.Now().Before(e.expires) {
		p.mu.Unlock()
		return e.user, nil
	}
	p.mu.Unlock()

	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return models.User{}, err
	}
	if info.subject() == "" {
		return models.User{}, ErrUnauthenticated
	}

	u, err := p.users.UpsertBySubject(ctx, info.subject(), info.Name, info.Email, info.Picture)
	if err != nil {
		return models.User{}, fmt.Errorf("upsert authenticated user: %w", err)
	}

	p.mu.Lock()
	p.cache[token] = cacheEntry{user: *u, expires: time.Now().Add(p.ttl)}
	p.mu.Unlock()
	return *u, nil
}

// PruneExpired removes cache entries past their TTL and reports how many
// were dropped. Resolve only overwrites entries for tokens it sees again,
// so a background sweep keeps the cache from growing with dead tokens.
func (p *Provider) PruneExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	n := 0
	for token, e := range p.cache {
		if now.After(e.expires) {
			delete(p.cache, token)
			n++
		}
	}
	return n
}

func (p *Provider) fetchUserInfo(ctx context.Context, token string) (*userInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	resp, err := client.Get(p.userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

// Middleware rejects requests without a valid bearer token and attaches
// the resolved user to the request context.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		user, err := p.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				p.log.Warn("identity resolution failed", zap.Error(err))
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithUser attaches an authenticated user to the context. Handlers use it
// via Middleware; tests use it directly.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the authenticated user for the request.
func FromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}
