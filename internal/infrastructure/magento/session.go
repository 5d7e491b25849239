package magento

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/magesync/backend/internal/domain/integration"
)

// TokenCache shares a session id between processes. Get returns "" when
// nothing is cached.
type TokenCache interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// NoopTokenCache caches nothing
type NoopTokenCache struct{}

func (NoopTokenCache) Get(context.Context) (string, error) { return "", nil }

func (NoopTokenCache) Set(context.Context, string) error { return nil }

func (NoopTokenCache) Delete(context.Context) error { return nil }

// Authenticator opens a remote session
type Authenticator interface {
	Login(ctx context.Context) (string, error)
}

// SessionProvider acquires session tokens, reusing a cached one when available
type SessionProvider struct {
	auth   Authenticator
	cache  TokenCache
	maxOps int
	logger *zap.Logger
}

// Ensure SessionProvider implements the SessionOpener port
var _ integration.SessionOpener = (*SessionProvider)(nil)

// NewSessionProvider creates a provider. A nil cache disables caching.
func NewSessionProvider(auth Authenticator, cache TokenCache, maxOpsPerSession int, logger *zap.Logger) *SessionProvider {
	if cache == nil {
		cache = NoopTokenCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionProvider{
		auth:   auth,
		cache:  cache,
		maxOps: maxOpsPerSession,
		logger: logger.Named("session"),
	}
}

// Acquire returns the cached token or logs in. Cache failures are logged
// and otherwise ignored.
func (p *SessionProvider) Acquire(ctx context.Context) (string, error) {
	token, err := p.cache.Get(ctx)
	if err != nil {
		p.logger.Warn("Token cache read failed", zap.Error(err))
	}
	if token != "" {
		return token, nil
	}

	token, err = p.auth.Login(ctx)
	if err != nil {
		return "", err
	}
	p.logger.Info("Remote session acquired")

	if err := p.cache.Set(ctx, token); err != nil {
		p.logger.Warn("Token cache write failed", zap.Error(err))
	}
	return token, nil
}

// forget evicts token from the cache
func (p *SessionProvider) forget(ctx context.Context) {
	if err := p.cache.Delete(ctx); err != nil {
		p.logger.Warn("Token cache delete failed", zap.Error(err))
	}
}

// Open returns a Session for one pass; nothing is fetched until the first Token call
func (p *SessionProvider) Open(_ context.Context) (integration.Session, error) {
	return &Session{provider: p, maxOps: p.maxOps}, nil
}

// Session is the explicit session handle of one pass
type Session struct {
	provider *SessionProvider
	maxOps   int

	mu     sync.Mutex
	token  string
	served int
	total  int
	logins int
}

// Ensure Session implements the Session port
var _ integration.Session = (*Session)(nil)

// Token returns the current token. After MaxOpsPerSession calls the token
// is dropped and a fresh one acquired.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.maxOps > 0 && s.served >= s.maxOps {
		s.provider.logger.Info("Rotating remote session", zap.Int("ops", s.served))
		s.provider.forget(ctx)
		s.token = ""
	}
	if s.token == "" {
		token, err := s.provider.Acquire(ctx)
		if err != nil {
			return "", err
		}
		s.token = token
		s.served = 0
		s.logins++
	}
	s.served++
	s.total++
	return s.token, nil
}

// Invalidate drops token when it is still current. Concurrent pipelines
// that saw the same expired token only trigger one new login.
func (s *Session) Invalidate(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || s.token != token {
		return
	}
	s.provider.logger.Info("Remote session invalidated")
	s.provider.forget(ctx)
	s.token = ""
}

// Ops returns how many tokens the session handed out
func (s *Session) Ops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Logins returns how many times the session had to acquire a token
func (s *Session) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}
