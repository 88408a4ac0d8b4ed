package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexuslabs/authcore/internal/otp"
)

// issueOTP generates a fresh code for the (account, purpose) pair and stores
// its digest, overwriting any live record and resetting its attempt counter.
// The plaintext code is returned to the caller exactly once, for delivery.
func (e *Engine) issueOTP(ctx context.Context, accountID string, purpose OTPPurpose) (string, error) {
	code, err := otp.NewCode(e.config.OTP.Digits)
	if err != nil {
		return "", err
	}

	rec := &otp.Record{
		Digest:    otp.DigestCode(code),
		ExpiresAt: e.clock().Add(e.config.OTP.TTL).Unix(),
	}
	if err := e.otpStore.Save(ctx, string(purpose), accountID, rec, e.config.OTP.TTL); err != nil {
		return "", e.mapOTPErr(err)
	}

	e.countMetric(MetricOTPIssued)
	return code, nil
}

// verifyOTP consumes one verification try against the live record. Exactly
// one of four things happens atomically: the code matches and the record is
// deleted, the attempt counter advances, the attempt bound invalidates the
// record, or the record turns out to be expired or absent.
func (e *Engine) verifyOTP(ctx context.Context, accountID string, purpose OTPPurpose, code string) error {
	err := e.otpStore.Consume(ctx, string(purpose), accountID, otp.DigestCode(code), e.config.OTP.MaxAttempts)
	if err == nil {
		e.countMetric(MetricOTPVerified)
		return nil
	}
	return e.mapOTPErr(err)
}

// mapOTPErr translates store sentinels into the public taxonomy.
func (e *Engine) mapOTPErr(err error) error {
	switch {
	case errors.Is(err, otp.ErrNotFound):
		e.countMetric(MetricOTPExpired)
		return ErrOTPExpired
	case errors.Is(err, otp.ErrMismatch):
		e.countMetric(MetricOTPMismatch)
		return ErrOTPMismatch
	case errors.Is(err, otp.ErrExhausted):
		e.countMetric(MetricOTPExhausted)
		return ErrOTPExhausted
	case errors.Is(err, otp.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	default:
		return err
	}
}
