// Package geo provides GeoResolver implementations. The engine treats every
// resolver as best-effort: lookups run under a hard timeout and a failed
// lookup degrades to a nil location, never to a failed login.
package geo

import (
	"context"
	"errors"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/nexuslabs/authcore"
)

// ErrInvalidIP is returned for input that does not parse as an IP address.
var ErrInvalidIP = errors.New("invalid ip address")

// MaxMind resolves against a local GeoIP2/GeoLite2 city database.
type MaxMind struct {
	db *geoip2.Reader
}

// OpenMaxMind opens the database file at path.
func OpenMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMind{db: db}, nil
}

// Resolve looks up the IP. The reader is local, so ctx is only checked on
// entry; the engine's timeout wrapper bounds the call as a whole.
func (m *MaxMind) Resolve(ctx context.Context, ip string) (*authcore.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, ErrInvalidIP
	}

	record, err := m.db.City(parsed)
	if err != nil {
		return nil, err
	}

	loc := &authcore.Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc, nil
}

// Close releases the database reader.
func (m *MaxMind) Close() error {
	return m.db.Close()
}
