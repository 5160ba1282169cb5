package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/borderland/pin-issuer/internal/domain"
	"github.com/borderland/pin-issuer/internal/repository"
)

func newTestChallengeManager(clock *fakeClock, pins ...string) (*ChallengeManager, repository.EntryRepository) {
	entries := repository.NewMemoryEntryRepository(clock.Now)
	m := NewChallengeManager(entries, ChallengeConfig{
		PinLength:   6,
		PinTTL:      10 * time.Minute,
		MaxAttempts: 5,
		BcryptCost:  bcrypt.MinCost,
	}, clock.Now)
	if len(pins) > 0 {
		m.generate = fixedPINs(pins...)
	}
	return m, entries
}

func storedRecord(t *testing.T, entries repository.EntryRepository, email string) (pinRecord, *domain.Entry) {
	t.Helper()
	entry, err := entries.Get(context.Background(), domain.NamespacePinCode, email)
	require.NoError(t, err)
	var record pinRecord
	require.NoError(t, json.Unmarshal(entry.Value, &record))
	return record, entry
}

func TestChallengeIssueAndVerify(t *testing.T) {
	clock := newFakeClock()
	m, entries := newTestChallengeManager(clock, "482913")
	ctx := context.Background()

	pin, expiresAt, err := m.Issue(ctx, "Alice@Example.com")
	require.NoError(t, err)
	require.Equal(t, "482913", pin)
	require.Equal(t, clock.Now().Add(10*time.Minute), expiresAt)

	record, entry := storedRecord(t, entries, "alice@example.com")
	require.Zero(t, record.Attempts)
	require.NotContains(t, string(entry.Value), "482913")
	require.Equal(t, 600*time.Second, entry.Remaining(clock.Now()))

	err = m.Verify(ctx, "alice@example.com", "000000")
	require.ErrorIs(t, err, domain.ErrCodeMismatch)
	record, _ = storedRecord(t, entries, "alice@example.com")
	require.Equal(t, 1, record.Attempts)

	require.NoError(t, m.Verify(ctx, "alice@example.com", " 482913 "))
	_, err = entries.Get(ctx, domain.NamespacePinCode, "alice@example.com")
	require.ErrorIs(t, err, repository.ErrEntryNotFound)

	err = m.Verify(ctx, "alice@example.com", "482913")
	require.ErrorIs(t, err, domain.ErrCodeExpired, "a PIN is single use")
}

func TestChallengeVerifyWithoutIssue(t *testing.T) {
	m, _ := newTestChallengeManager(newFakeClock())
	err := m.Verify(context.Background(), "nobody@example.com", "123456")
	require.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestChallengeExpires(t *testing.T) {
	clock := newFakeClock()
	m, _ := newTestChallengeManager(clock, "482913")
	ctx := context.Background()

	_, _, err := m.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	err = m.Verify(ctx, "alice@example.com", "482913")
	require.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestChallengeMismatchKeepsRemainingTTL(t *testing.T) {
	clock := newFakeClock()
	m, entries := newTestChallengeManager(clock, "482913")
	ctx := context.Background()

	_, _, err := m.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)

	require.ErrorIs(t, m.Verify(ctx, "alice@example.com", "111111"), domain.ErrCodeMismatch)
	_, entry := storedRecord(t, entries, "alice@example.com")
	require.Equal(t, 6*time.Minute, entry.Remaining(clock.Now()))

	clock.Advance(6 * time.Minute)
	require.ErrorIs(t, m.Verify(ctx, "alice@example.com", "482913"), domain.ErrCodeExpired)
}

func TestChallengeReissueInvalidatesPreviousPIN(t *testing.T) {
	clock := newFakeClock()
	m, entries := newTestChallengeManager(clock, "111111", "222222")
	ctx := context.Background()

	first, _, err := m.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	require.ErrorIs(t, m.Verify(ctx, "alice@example.com", "999999"), domain.ErrCodeMismatch)
	clock.Advance(time.Minute)

	second, _, err := m.Issue(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	record, entry := storedRecord(t, entries, "alice@example.com")
	require.Zero(t, record.Attempts, "reissue resets attempts")
	require.Equal(t, 10*time.Minute, entry.Remaining(clock.Now()), "reissue resets ttl")

	require.ErrorIs(t, m.Verify(ctx, "alice@example.com", first), domain.ErrCodeMismatch)
	require.NoError(t, m.Verify(ctx, "alice@example.com", second))
}

func TestChallengeLockout(t *testing.T) {
	clock := newFakeClock()
	m, entries := newTestChallengeManager(clock, "482913")
	ctx := context.Background()

	_, _, err := m.Issue(ctx, "alice@example.com")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, m.Verify(ctx, "alice@example.com", "000000"), domain.ErrCodeMismatch)
	}
	require.ErrorIs(t, m.Verify(ctx, "alice@example.com", "482913"), domain.ErrTooManyAttempts)

	_, err = entries.Get(ctx, domain.NamespacePinCode, "alice@example.com")
	require.ErrorIs(t, err, repository.ErrEntryNotFound, "lockout forces a reissue")
	require.ErrorIs(t, m.Verify(ctx, "alice@example.com", "482913"), domain.ErrCodeExpired)
}

func TestChallengeCorruptRecord(t *testing.T) {
	clock := newFakeClock()
	m, entries := newTestChallengeManager(clock)
	ctx := context.Background()

	require.NoError(t, entries.Put(ctx, domain.NamespacePinCode, "alice@example.com", []byte("{"), time.Minute))
	require.ErrorIs(t, m.Verify(ctx, "alice@example.com", "482913"), domain.ErrCodeExpired)
	_, err := entries.Get(ctx, domain.NamespacePinCode, "alice@example.com")
	require.ErrorIs(t, err, repository.ErrEntryNotFound)
}
