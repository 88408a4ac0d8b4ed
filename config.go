package authcore

import (
	"errors"
	"time"
)

// Config carries every tunable the engine reads. It is copied at Build time
// and treated as immutable afterward.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	OTP      OTPConfig
	Lockout  LockoutConfig
	Anomaly  AnomalyConfig
	Geo      GeoConfig
	History  HistoryConfig
	Notify   NotifyConfig
	Metrics  MetricsConfig
}

// JWTConfig configures the token lifecycle manager.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte // ed25519 only
	Issuer        string
}

// PasswordConfig configures the argon2id hasher.
type PasswordConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// OTPConfig configures one-time-code issuance and verification.
type OTPConfig struct {
	TTL         time.Duration
	Digits      int
	MaxAttempts int
	RedisPrefix string
}

// LockoutConfig configures the lockout state machine.
type LockoutConfig struct {
	Threshold int           // failures within Window that trigger lockout
	Window    time.Duration // sliding window for counting failures
	Duration  time.Duration // time a triggered lockout stays in force
}

// AnomalyConfig configures the geo-anomaly rule.
type AnomalyConfig struct {
	GeoHistoryWindow time.Duration // how far back successful logins count as "known"
	HistoryLimit     int           // max attempts fetched per evaluation
}

// GeoConfig bounds the geolocation lookup.
type GeoConfig struct {
	LookupTimeout time.Duration
}

// HistoryConfig bounds the recent-attempt view.
type HistoryConfig struct {
	RecentLimit int // upper bound for RecentAttempts
	PageSize    int // rows fetched per store round-trip while iterating
}

// NotifyConfig controls the async security-event dispatcher.
type NotifyConfig struct {
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-core counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the Builder starts from. The JWT
// private key has no default and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		OTP: OTPConfig{
			TTL:         10 * time.Minute,
			Digits:      6,
			MaxAttempts: 5,
			RedisPrefix: "otp",
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    15 * time.Minute,
			Duration:  30 * time.Minute,
		},
		Anomaly: AnomalyConfig{
			GeoHistoryWindow: 30 * 24 * time.Hour,
			HistoryLimit:     50,
		},
		Geo: GeoConfig{
			LookupTimeout: 2 * time.Second,
		},
		History: HistoryConfig{
			RecentLimit: 50,
			PageSize:    20,
		},
		Notify: NotifyConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot operate under. Zero
// values that have safe defaults are filled by normalize, not here.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt TTLs must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("jwt private key required")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp TTL must be positive")
	}
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if c.OTP.MaxAttempts < 1 {
		return errors.New("otp max attempts must be at least 1")
	}
	if c.Lockout.Threshold < 1 {
		return errors.New("lockout threshold must be at least 1")
	}
	if c.Lockout.Window <= 0 || c.Lockout.Duration <= 0 {
		return errors.New("lockout window and duration must be positive")
	}
	if c.Anomaly.GeoHistoryWindow <= 0 {
		return errors.New("geo history window must be positive")
	}
	if c.Geo.LookupTimeout <= 0 {
		return errors.New("geo lookup timeout must be positive")
	}
	if c.History.RecentLimit < 1 || c.History.PageSize < 1 {
		return errors.New("history limits must be at least 1")
	}
	return nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.JWT.SigningMethod == "" {
		c.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if c.OTP.RedisPrefix == "" {
		c.OTP.RedisPrefix = def.OTP.RedisPrefix
	}
	if c.Anomaly.HistoryLimit <= 0 {
		c.Anomaly.HistoryLimit = def.Anomaly.HistoryLimit
	}
	if c.Notify.BufferSize <= 0 {
		c.Notify.BufferSize = def.Notify.BufferSize
	}
}

func cloneConfig(c Config) Config {
	out := c
	out.JWT.PrivateKey = cloneBytes(c.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(c.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
