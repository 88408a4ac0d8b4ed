package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nexuslabs/authcore/internal/blacklist"
	"github.com/nexuslabs/authcore/internal/notify"
	"github.com/nexuslabs/authcore/internal/otp"
	"github.com/nexuslabs/authcore/jwt"
	"github.com/nexuslabs/authcore/password"
)

// Builder assembles an Engine. Collaborators are injected here once; the
// resulting Engine is immutable and safe for concurrent use.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	accounts AccountStore
	attempts AttemptStore
	claims   ClaimStore
	geo      GeoResolver
	queue    Queue
	logger   *zap.Logger

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the ephemeral store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStores sets the relational store implementations. Required.
func (b *Builder) WithStores(accounts AccountStore, attempts AttemptStore, claims ClaimStore) *Builder {
	b.accounts = accounts
	b.attempts = attempts
	b.claims = claims
	return b
}

// WithGeoResolver sets the best-effort geolocation collaborator. Optional;
// without it every attempt records a nil location.
func (b *Builder) WithGeoResolver(r GeoResolver) *Builder {
	b.geo = r
	return b
}

// WithQueue sets the async job collaborator. Optional; without it security
// events are dropped on the floor (and counted).
func (b *Builder) WithQueue(q Queue) *Builder {
	b.queue = q
	return b
}

// WithLogger sets the logger for degraded-path warnings. Optional; defaults
// to a nop logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration, wires the internal stores, and starts
// the event dispatcher.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil || b.attempts == nil || b.claims == nil {
		return nil, errors.New("account, attempt, and claim stores required")
	}

	cfg := cloneConfig(b.config)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:    cfg,
		accounts:  b.accounts,
		attempts:  b.attempts,
		claims:    b.claims,
		geo:       b.geo,
		hasher:    hasher,
		tokens:    tokens,
		otpStore:  otp.NewStore(b.redis, cfg.OTP.RedisPrefix),
		blacklist: blacklist.NewStore(b.redis, "bl"),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		clock:     time.Now,
	}
	engine.notifier = notify.NewDispatcher(notify.Config{
		BufferSize: cfg.Notify.BufferSize,
		DropIfFull: cfg.Notify.DropIfFull,
	}, &queueSink{queue: b.queue, logger: logger})

	b.built = true

	return engine, nil
}

// queueSink bridges the dispatcher to the Queue collaborator. Enqueue
// failures are logged and forgotten; the decision path never sees them.
type queueSink struct {
	queue  Queue
	logger *zap.Logger
}

func (s *queueSink) Emit(ctx context.Context, event notify.Event) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, event.Kind, event.Payload); err != nil {
		s.logger.Warn("security event enqueue failed",
			zap.String("kind", event.Kind),
			zap.Error(err),
		)
	}
}
