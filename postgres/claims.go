package postgres

import (
	"context"
	"time"

	"github.com/nexuslabs/authcore"
)

// ClaimStore persists SecurityClaim rows.
type ClaimStore struct {
	db DB
}

// NewClaimStore wires the store over db.
func NewClaimStore(db DB) *ClaimStore {
	return &ClaimStore{db: db}
}

// Create inserts a new unresolved claim.
func (s *ClaimStore) Create(ctx context.Context, c *authcore.SecurityClaim) error {
	var country, city *string
	if c.Location != nil {
		country, city = &c.Location.Country, &c.Location.City
	}
	var attemptID *string
	if c.AttemptID != "" {
		attemptID = &c.AttemptID
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO security_claims
			(id, account_id, kind, description, attempt_id, ip_address, country, city, resolved, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.AccountID, string(c.Kind), c.Description, attemptID, c.IP, country, city, c.Resolved, c.ResolvedAt, c.CreatedAt)
	if err != nil {
		return storeErr("create claim", err)
	}
	return nil
}

// ListUnresolved returns the account's open claims, newest first.
func (s *ClaimStore) ListUnresolved(ctx context.Context, accountID string) ([]authcore.SecurityClaim, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, kind, description, attempt_id, ip_address, country, city, resolved, resolved_at, created_at
		FROM security_claims
		WHERE account_id = $1 AND resolved = FALSE
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, storeErr("list claims", err)
	}
	defer rows.Close()

	var out []authcore.SecurityClaim
	for rows.Next() {
		var (
			c             authcore.SecurityClaim
			kind          string
			attemptID     *string
			country, city *string
		)
		if err := rows.Scan(&c.ID, &c.AccountID, &kind, &c.Description, &attemptID, &c.IP, &country, &city, &c.Resolved, &c.ResolvedAt, &c.CreatedAt); err != nil {
			return nil, storeErr("scan claim", err)
		}
		c.Kind = authcore.ClaimKind(kind)
		if attemptID != nil {
			c.AttemptID = *attemptID
		}
		if country != nil && *country != "" {
			c.Location = &authcore.Location{Country: *country}
			if city != nil {
				c.Location.City = *city
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list claims", err)
	}
	return out, nil
}

// Resolve acknowledges one claim for its owner. Reports false when the
// claim does not exist, belongs to someone else, or is already resolved.
func (s *ClaimStore) Resolve(ctx context.Context, accountID, claimID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE security_claims
		SET resolved = TRUE, resolved_at = $3
		WHERE id = $2 AND account_id = $1 AND resolved = FALSE
	`, accountID, claimID, at)
	if err != nil {
		return false, storeErr("resolve claim", err)
	}
	return tag.RowsAffected() == 1, nil
}
