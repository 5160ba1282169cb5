package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/borderland/pin-issuer/internal/domain"
)

// ErrIdentityNotFound is returned when an email is not a workspace member.
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityRepository looks up workspace members by email.
type IdentityRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

// NormalizeEmail trims and lower-cases an address for lookups and entry keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	const query = `
        SELECT id::text, email, created_at
        FROM identities WHERE LOWER(email)=$1`

	var identity domain.Identity
	if err := r.pool.QueryRow(ctx, query, NormalizeEmail(email)).Scan(
		&identity.UserID,
		&identity.Email,
		&identity.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, unavailable("find identity", err)
	}
	return &identity, nil
}

type staticIdentityRepository struct {
	byEmail map[string]domain.Identity
}

// NewStaticIdentityRepository builds an allow-list from identities.
func NewStaticIdentityRepository(identities []domain.Identity) IdentityRepository {
	byEmail := make(map[string]domain.Identity, len(identities))
	for _, identity := range identities {
		byEmail[NormalizeEmail(identity.Email)] = identity
	}
	return &staticIdentityRepository{byEmail: byEmail}
}

func (r *staticIdentityRepository) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	identity, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return &identity, nil
}

// ParseAllowList parses "uuid=email;uuid=email" into identities.
func ParseAllowList(raw string) ([]domain.Identity, error) {
	var identities []domain.Identity
	seen := make(map[string]struct{})
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, email, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("allow-list entry %q: expected id=email", item)
		}
		id = strings.TrimSpace(id)
		email = strings.TrimSpace(email)
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("allow-list entry %q: invalid user id: %w", item, err)
		}
		if !strings.Contains(email, "@") {
			return nil, fmt.Errorf("allow-list entry %q: invalid email", item)
		}
		key := NormalizeEmail(email)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("allow-list entry %q: duplicate email", item)
		}
		seen[key] = struct{}{}
		identities = append(identities, domain.Identity{UserID: id, Email: email})
	}
	return identities, nil
}
