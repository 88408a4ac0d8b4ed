package postgres

import (
	"context"

	"github.com/nexuslabs/authcore"
)

// AttemptStore persists immutable LoginAttempt rows. There is no update or
// delete path on purpose.
type AttemptStore struct {
	db DB
}

// NewAttemptStore wires the store over db.
func NewAttemptStore(db DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Record inserts one attempt row. A nil location is stored as NULLs.
func (s *AttemptStore) Record(ctx context.Context, a *authcore.LoginAttempt) error {
	var country, countryCode, region, city *string
	if a.Location != nil {
		country, countryCode = &a.Location.Country, &a.Location.CountryCode
		region, city = &a.Location.Region, &a.Location.City
	}
	var accountID *string
	if a.AccountID != "" {
		accountID = &a.AccountID
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO login_attempts
			(id, account_id, email, ip_address, country, country_code, region, city, outcome, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, accountID, a.Email, a.IP, country, countryCode, region, city, string(a.Outcome), a.UserAgent, a.CreatedAt)
	if err != nil {
		return storeErr("record attempt", err)
	}
	return nil
}

// ListRecent returns up to limit attempts for the account, newest first,
// skipping offset rows. The (account_id, created_at DESC) index serves it.
func (s *AttemptStore) ListRecent(ctx context.Context, accountID string, limit, offset int) ([]authcore.LoginAttempt, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, email, ip_address, country, country_code, region, city, outcome, user_agent, created_at
		FROM login_attempts
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, storeErr("list attempts", err)
	}
	defer rows.Close()

	var out []authcore.LoginAttempt
	for rows.Next() {
		var (
			a                                  authcore.LoginAttempt
			acct                               *string
			country, countryCode, region, city *string
			outcome                            string
		)
		if err := rows.Scan(&a.ID, &acct, &a.Email, &a.IP, &country, &countryCode, &region, &city, &outcome, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, storeErr("scan attempt", err)
		}
		if acct != nil {
			a.AccountID = *acct
		}
		a.Outcome = authcore.AttemptOutcome(outcome)
		if country != nil && *country != "" {
			a.Location = &authcore.Location{Country: *country}
			if countryCode != nil {
				a.Location.CountryCode = *countryCode
			}
			if region != nil {
				a.Location.Region = *region
			}
			if city != nil {
				a.Location.City = *city
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list attempts", err)
	}
	return out, nil
}
