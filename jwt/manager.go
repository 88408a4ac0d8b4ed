// Package jwt issues and validates the engine's signed token pairs: a
// short-lived stateless access token and a long-lived refresh token carrying
// a unique token id. Nothing here touches a store; revocation state lives
// with the caller.
package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var (
	// ErrInvalid covers malformed tokens, bad signatures, and kind misuse
	// (an access token presented for refresh or vice versa).
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is a well-formed, correctly signed token past its expiry.
	ErrExpired = errors.New("token expired")
)

// Config configures a Manager.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte // ed25519 only
	Issuer        string
}

// Claims is the engine's token payload. Subject carries the account id;
// ID carries the refresh token's unique id (empty on access tokens).
type Claims struct {
	Kind string `json:"tkn"`
	jwt.RegisteredClaims
}

// Manager signs and verifies token pairs.
type Manager struct {
	config     Config
	signKey    any
	verifyKey  any
	signMethod jwt.SigningMethod
}

// NewManager validates the configuration and prepares key material.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		m.signMethod = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		m.signMethod = jwt.SigningMethodEdDSA
		m.signKey = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		} else {
			m.verifyKey = priv.Public()
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// CreateAccess signs an access token for the account, valid from now.
func (m *Manager) CreateAccess(accountID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.config.AccessTTL)
	return m.sign(Claims{
		Kind: kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, exp)
}

// CreateRefresh signs a refresh token carrying the given unique token id.
func (m *Manager) CreateRefresh(accountID, tokenID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.config.RefreshTTL)
	return m.sign(Claims{
		Kind: kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        tokenID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, exp)
}

func (m *Manager) sign(claims Claims, exp time.Time) (string, time.Time, error) {
	signed, err := jwt.NewWithClaims(m.signMethod, claims).SignedString(m.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess verifies signature and expiry and returns the account id.
func (m *Manager) ParseAccess(token string) (string, error) {
	claims, err := m.parse(token, true)
	if err != nil {
		return "", err
	}
	if claims.Kind != kindAccess {
		return "", ErrInvalid
	}
	return claims.Subject, nil
}

// ParseRefresh verifies signature and expiry and returns the account id,
// the token id, and the expiry instant.
func (m *Manager) ParseRefresh(token string) (string, string, time.Time, error) {
	claims, err := m.parse(token, true)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return refreshFields(claims)
}

// ParseRefreshAllowExpired verifies the signature only, accepting tokens
// past their lifetime. Revocation uses this so an expired-but-parseable
// token can still be blacklisted idempotently.
func (m *Manager) ParseRefreshAllowExpired(token string) (string, string, time.Time, error) {
	claims, err := m.parse(token, false)
	if err != nil && !errors.Is(err, ErrExpired) {
		return "", "", time.Time{}, err
	}
	return refreshFields(claims)
}

func refreshFields(claims *Claims) (string, string, time.Time, error) {
	if claims.Kind != kindRefresh || claims.ID == "" {
		return "", "", time.Time{}, ErrInvalid
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return claims.Subject, claims.ID, exp, nil
}

func (m *Manager) parse(token string, rejectExpired bool) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if !rejectExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.verifyKey, nil
	}, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, ErrExpired
	default:
		return nil, ErrInvalid
	}

	if !rejectExpired && claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return claims, ErrExpired
	}
	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	default:
		return nil, errors.New("invalid ed25519 private key size")
	}
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key size")
	}
	return ed25519.PublicKey(key), nil
}
