package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/borderland/pin-issuer/internal/domain"
	"github.com/borderland/pin-issuer/internal/repository"
)

// ChallengeConfig controls PIN issuance and lockout.
type ChallengeConfig struct {
	PinLength   int
	PinTTL      time.Duration
	MaxAttempts int
	BcryptCost  int
}

// pinRecord is the value stored under (pin-code, email).
type pinRecord struct {
	Hash     string `json:"hash"`
	Attempts int    `json:"attempts"`
}

// ChallengeManager runs the PIN lifecycle for one email at a time:
// absent -> pending on Issue, pending -> absent on success or lockout.
// Reissuing overwrites the pending PIN, so only the latest code is valid.
type ChallengeManager struct {
	entries  repository.EntryRepository
	cfg      ChallengeConfig
	now      func() time.Time
	generate func(length int) (string, error)
}

// NewChallengeManager builds a manager over the entry store.
func NewChallengeManager(entries repository.EntryRepository, cfg ChallengeConfig, now func() time.Time) *ChallengeManager {
	if cfg.PinLength <= 0 {
		cfg.PinLength = 6
	}
	if cfg.PinTTL <= 0 {
		cfg.PinTTL = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if now == nil {
		now = time.Now
	}
	return &ChallengeManager{entries: entries, cfg: cfg, now: now, generate: GeneratePIN}
}

// PinTTL returns how long an issued PIN stays valid.
func (m *ChallengeManager) PinTTL() time.Duration {
	return m.cfg.PinTTL
}

// Issue mints a new PIN for email, replacing any pending one, and returns it
// together with its expiry. Only the hash is persisted.
func (m *ChallengeManager) Issue(ctx context.Context, email string) (string, time.Time, error) {
	key := repository.NormalizeEmail(email)

	pin, err := m.generate(m.cfg.PinLength)
	if err != nil {
		return "", time.Time{}, err
	}
	hash, err := HashPIN(pin, m.cfg.BcryptCost)
	if err != nil {
		return "", time.Time{}, err
	}
	payload, err := json.Marshal(pinRecord{Hash: hash})
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := m.now().Add(m.cfg.PinTTL)
	if err := m.entries.Put(ctx, domain.NamespacePinCode, key, payload, m.cfg.PinTTL); err != nil {
		return "", time.Time{}, err
	}
	return pin, expiresAt, nil
}

// Verify checks candidate against the pending PIN for email.
//
// It returns domain.ErrCodeExpired when nothing is pending, domain.ErrTooManyAttempts
// once the attempt budget is spent (the entry is removed), and domain.ErrCodeMismatch
// for a wrong PIN (the attempt is recorded without extending the expiry). A match
// consumes the entry.
func (m *ChallengeManager) Verify(ctx context.Context, email, candidate string) error {
	key := repository.NormalizeEmail(email)

	entry, err := m.entries.Get(ctx, domain.NamespacePinCode, key)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return domain.ErrCodeExpired
		}
		return err
	}

	var record pinRecord
	if err := json.Unmarshal(entry.Value, &record); err != nil || record.Hash == "" {
		if err := m.entries.Delete(ctx, domain.NamespacePinCode, key); err != nil {
			return err
		}
		return domain.ErrCodeExpired
	}

	if record.Attempts >= m.cfg.MaxAttempts {
		if err := m.entries.Delete(ctx, domain.NamespacePinCode, key); err != nil {
			return err
		}
		return domain.ErrTooManyAttempts
	}

	if err := ComparePIN(record.Hash, strings.TrimSpace(candidate)); err != nil {
		remaining := entry.Remaining(m.now())
		if remaining <= 0 {
			return domain.ErrCodeExpired
		}
		record.Attempts++
		payload, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := m.entries.Put(ctx, domain.NamespacePinCode, key, payload, remaining); err != nil {
			return err
		}
		return domain.ErrCodeMismatch
	}

	return m.entries.Delete(ctx, domain.NamespacePinCode, key)
}
