package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/nexuslabs/authcore"
)

func newClaimMock(t *testing.T) (pgxmock.PgxPoolIface, *ClaimStore) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return mock, NewClaimStore(mock)
}

func claimRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "account_id", "kind", "description", "attempt_id", "ip_address",
		"country", "city", "resolved", "resolved_at", "created_at",
	})
}

func TestClaimCreate(t *testing.T) {
	mock, store := newClaimMock(t)

	mock.ExpectExec("INSERT INTO security_claims").
		WithArgs("c1", "u1", "unusual_location", "login from new location: Berlin, Germany",
			pgxmock.AnyArg(), "203.0.113.10", pgxmock.AnyArg(), pgxmock.AnyArg(),
			false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Create(context.Background(), &authcore.SecurityClaim{
		ID:          "c1",
		AccountID:   "u1",
		Kind:        authcore.ClaimUnusualLocation,
		Description: "login from new location: Berlin, Germany",
		AttemptID:   "a1",
		IP:          "203.0.113.10",
		Location:    &authcore.Location{Country: "Germany", City: "Berlin"},
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimListUnresolved(t *testing.T) {
	mock, store := newClaimMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM security_claims").
		WithArgs("u1").
		WillReturnRows(claimRows().
			AddRow("c2", "u1", "lockout_triggered", "account locked after repeated failed attempts",
				strPtr("a5"), "203.0.113.10", nil, nil, false, nil, now).
			AddRow("c1", "u1", "unusual_location", "login from new location: Berlin, Germany",
				strPtr("a1"), "203.0.113.10", strPtr("Germany"), strPtr("Berlin"), false, nil, now.Add(-time.Hour)))

	claims, err := store.ListUnresolved(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, claims, 2)

	require.Equal(t, authcore.ClaimLockoutTriggered, claims[0].Kind)
	require.Nil(t, claims[0].Location)

	require.Equal(t, authcore.ClaimUnusualLocation, claims[1].Kind)
	require.NotNil(t, claims[1].Location)
	require.Equal(t, "Berlin", claims[1].Location.City)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimResolve(t *testing.T) {
	mock, store := newClaimMock(t)
	at := time.Now()

	mock.ExpectExec("UPDATE security_claims").
		WithArgs("u1", "c1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := store.Resolve(context.Background(), "u1", "c1", at)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimResolveForeignOrResolved(t *testing.T) {
	mock, store := newClaimMock(t)
	at := time.Now()

	// The WHERE clause filters on owner and the resolved flag, so a foreign
	// or already-acknowledged claim simply matches nothing.
	mock.ExpectExec("UPDATE security_claims").
		WithArgs("intruder", "c1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := store.Resolve(context.Background(), "intruder", "c1", at)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
