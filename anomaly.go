package authcore

import "time"

// verdict is the anomaly detector's classification of one attempt. Rules are
// independent and non-exclusive; both may fire for the same attempt.
type verdict struct {
	lockout         bool
	unusualLocation bool
}

// evaluateAttempt classifies the attempt just recorded against account
// history. history must be ordered newest-first and include the current
// attempt (read-your-write); the rules themselves are pure.
func evaluateAttempt(history []LoginAttempt, current LoginAttempt, lockout LockoutConfig, anomaly AnomalyConfig, now time.Time) verdict {
	return verdict{
		lockout:         countRecentFailures(history, lockout.Window, now) >= lockout.Threshold,
		unusualLocation: isUnusualLocation(history, current, anomaly.GeoHistoryWindow, now),
	}
}

// countRecentFailures counts bad_credentials and otp_failed outcomes inside
// the sliding window. Attempts recorded while locked never count: they were
// rejected before any credential was checked.
func countRecentFailures(history []LoginAttempt, window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)
	n := 0
	for _, a := range history {
		if a.CreatedAt.Before(cutoff) {
			break // newest-first: everything after this is older
		}
		if a.Outcome == OutcomeBadCredentials || a.Outcome == OutcomeOTPFailed {
			n++
		}
	}
	return n
}

// isUnusualLocation reports whether the current attempt's country differs
// from every successful attempt's country inside the window. Cold-start
// exemption: with no prior successful attempt from a known location, the
// rule never fires.
func isUnusualLocation(history []LoginAttempt, current LoginAttempt, window time.Duration, now time.Time) bool {
	if current.Location == nil || current.Location.Country == "" {
		return false
	}
	cutoff := now.Add(-window)
	knownPrior := false
	for _, a := range history {
		if a.ID == current.ID {
			continue
		}
		if a.CreatedAt.Before(cutoff) {
			break
		}
		if a.Outcome != OutcomeSuccess || a.Location == nil || a.Location.Country == "" {
			continue
		}
		knownPrior = true
		if a.Location.Country == current.Location.Country {
			return false
		}
	}
	return knownPrior
}
