package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/auth"
	"github.com/borderland/pin-issuer/internal/config"
	"github.com/borderland/pin-issuer/internal/domain"
	"github.com/borderland/pin-issuer/internal/events"
	"github.com/borderland/pin-issuer/internal/observability"
	"github.com/borderland/pin-issuer/internal/repository"
)

// TokenTypeBearer is the token_type of every issued access token.
const TokenTypeBearer = "Bearer"

// Outcomes recorded on the metrics registry.
const (
	OutcomeCodeIssued         = "code_issued"
	OutcomeCodeDeliveryFailed = "code_delivery_failed"
	OutcomeEmailNotAuthorized = "email_not_authorized"
	OutcomeThrottled          = "throttled"
	OutcomeCodeRejected       = "code_rejected"
	OutcomeTokenIssued        = "token_issued"
	OutcomeTokenRefreshed     = "token_refreshed"
	OutcomeTokenRejected      = "token_rejected"
)

// AuthorizeInput is a request for a sign-in code.
type AuthorizeInput struct {
	Email               string
	ClientID            string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ExchangeInput trades a PIN for tokens.
type ExchangeInput struct {
	ChallengeID  string
	PIN          string
	CodeVerifier string
}

// challengeRecord is the value stored under (challenge, id).
type challengeRecord struct {
	Email    string `json:"email"`
	ClientID string `json:"client_id,omitempty"`
}

// refreshRecord is the value stored under (refresh-token, sha256(token)).
type refreshRecord struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// IssuerService runs the code, token, and userinfo flows.
type IssuerService struct {
	entries     repository.EntryRepository
	identities  repository.IdentityRepository
	challenges  *auth.ChallengeManager
	signer      *auth.SubjectSigner
	throttle    auth.Throttle
	sender      CodeSender
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	workspaceID string
	refreshTTL  time.Duration
	now         func() time.Time
}

// IssuerDependencies encapsulates collaborators of the issuer service.
type IssuerDependencies struct {
	Entries    repository.EntryRepository
	Identities repository.IdentityRepository
	Signer     *auth.SubjectSigner
	Throttle   auth.Throttle
	Sender     CodeSender
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewIssuerService builds the service.
func NewIssuerService(cfg config.Config, deps IssuerDependencies) *IssuerService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	throttle := deps.Throttle
	if throttle == nil {
		throttle = auth.NewMemoryThrottle(0, 0)
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	return &IssuerService{
		entries:    deps.Entries,
		identities: deps.Identities,
		challenges: auth.NewChallengeManager(deps.Entries, auth.ChallengeConfig{
			PinLength:   cfg.Auth.PinLength,
			PinTTL:      cfg.Auth.PinTTL,
			MaxAttempts: cfg.Auth.MaxAttempts,
			BcryptCost:  cfg.Auth.BcryptCost,
		}, now),
		signer:      deps.Signer,
		throttle:    throttle,
		sender:      deps.Sender,
		dispatcher:  dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		workspaceID: cfg.Issuer.WorkspaceID,
		refreshTTL:  cfg.Issuer.RefreshTokenTTL,
		now:         now,
	}
}

// RequestCode checks membership, mints a PIN and sends it to the email.
//
// Non-members get domain.ErrEmailNotAuthorized and nothing is stored. When
// delivery fails the challenge is returned together with
// domain.ErrCodeDeliveryFailed: the PIN stays valid and the throttle slot is
// released so the client may ask again at once.
func (s *IssuerService) RequestCode(ctx context.Context, in AuthorizeInput) (*domain.Challenge, error) {
	email := repository.NormalizeEmail(in.Email)
	if email == "" {
		return nil, domain.ErrEmailNotAuthorized
	}

	codeChallenge := strings.TrimSpace(in.CodeChallenge)
	if codeChallenge != "" {
		method := in.CodeChallengeMethod
		if method == "" {
			method = auth.PKCEMethodS256
		}
		if method != auth.PKCEMethodS256 || !auth.ValidateCodeChallenge(codeChallenge) {
			return nil, domain.ErrInvalidGrant
		}
	}

	allowed, err := s.throttle.Allow(ctx, email)
	if err != nil {
		s.logger.Warn("code throttle unavailable", zap.Error(err))
		allowed = true
	}
	if !allowed {
		s.metrics.RecordOutcome(OutcomeThrottled)
		return nil, domain.ErrTooManyRequests
	}

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			s.metrics.RecordOutcome(OutcomeEmailNotAuthorized)
			s.publish(ctx, events.Event{
				Type:    events.EventCodeRejected,
				Email:   email,
				Payload: events.CodeRejectedPayload{Reason: OutcomeEmailNotAuthorized},
			})
			return nil, domain.ErrEmailNotAuthorized
		}
		return nil, err
	}

	pin, expiresAt, err := s.challenges.Issue(ctx, email)
	if err != nil {
		return nil, err
	}

	challengeID := uuid.NewString()
	payload, err := json.Marshal(challengeRecord{Email: email, ClientID: in.ClientID})
	if err != nil {
		return nil, err
	}
	ttl := s.challenges.PinTTL()
	if err := s.entries.Put(ctx, domain.NamespaceChallenge, challengeID, payload, ttl); err != nil {
		return nil, err
	}
	if codeChallenge != "" {
		if err := s.entries.Put(ctx, domain.NamespacePKCEVerifier, challengeID, []byte(codeChallenge), ttl); err != nil {
			return nil, err
		}
	}

	challenge := &domain.Challenge{ID: challengeID, Email: email, ExpiresAt: expiresAt}
	issued := events.CodeIssuedPayload{ChallengeID: challengeID, ClientID: in.ClientID, ExpiresAt: expiresAt, Delivered: true}
	if err := s.sender.SendCode(ctx, email, pin, ttl); err != nil {
		s.logger.Error("code delivery failed", zap.String("email", email), zap.Error(err))
		s.metrics.RecordOutcome(OutcomeCodeDeliveryFailed)
		issued.Delivered = false
		s.publish(ctx, events.Event{Type: events.EventCodeIssued, Email: email, UserID: identity.UserID, Payload: issued})
		if err := s.throttle.Release(ctx, email); err != nil {
			s.logger.Warn("code throttle release failed", zap.Error(err))
		}
		return challenge, domain.ErrCodeDeliveryFailed
	}

	s.metrics.RecordOutcome(OutcomeCodeIssued)
	s.publish(ctx, events.Event{Type: events.EventCodeIssued, Email: email, UserID: identity.UserID, Payload: issued})
	return challenge, nil
}

// ExchangeCode verifies the PIN behind a challenge and issues tokens.
func (s *IssuerService) ExchangeCode(ctx context.Context, in ExchangeInput) (*domain.TokenSet, error) {
	challengeID := strings.TrimSpace(in.ChallengeID)
	if challengeID == "" {
		return nil, domain.ErrCodeExpired
	}

	entry, err := s.entries.Get(ctx, domain.NamespaceChallenge, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return nil, s.reject(ctx, challengeID, "", domain.ErrCodeExpired)
		}
		return nil, err
	}
	var record challengeRecord
	if err := json.Unmarshal(entry.Value, &record); err != nil || record.Email == "" {
		if err := s.discardChallenge(ctx, challengeID); err != nil {
			return nil, err
		}
		return nil, s.reject(ctx, challengeID, "", domain.ErrCodeExpired)
	}

	pkce, err := s.entries.Get(ctx, domain.NamespacePKCEVerifier, challengeID)
	switch {
	case err == nil:
		if !auth.ValidatePKCE(in.CodeVerifier, string(pkce.Value), auth.PKCEMethodS256) {
			return nil, s.reject(ctx, challengeID, record.Email, domain.ErrInvalidGrant)
		}
	case !errors.Is(err, repository.ErrEntryNotFound):
		return nil, err
	}

	if err := s.challenges.Verify(ctx, record.Email, in.PIN); err != nil {
		switch {
		case errors.Is(err, domain.ErrCodeExpired), errors.Is(err, domain.ErrTooManyAttempts):
			if discardErr := s.discardChallenge(ctx, challengeID); discardErr != nil {
				s.logger.Warn("discard challenge", zap.String("challenge_id", challengeID), zap.Error(discardErr))
			}
			return nil, s.reject(ctx, challengeID, record.Email, err)
		case errors.Is(err, domain.ErrCodeMismatch):
			return nil, s.reject(ctx, challengeID, record.Email, err)
		}
		return nil, err
	}
	if err := s.discardChallenge(ctx, challengeID); err != nil {
		s.logger.Warn("discard challenge", zap.String("challenge_id", challengeID), zap.Error(err))
	}

	identity, err := s.identities.FindByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, s.reject(ctx, challengeID, record.Email, domain.ErrEmailNotAuthorized)
		}
		return nil, err
	}

	tokens, err := s.issueTokens(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOutcome(OutcomeTokenIssued)
	s.publish(ctx, events.Event{
		Type:    events.EventTokenIssued,
		Email:   identity.Email,
		UserID:  identity.UserID,
		Payload: events.TokenIssuedPayload{WorkspaceID: s.workspaceID, ExpiresAt: tokens.ExpiresAt},
	})
	return tokens, nil
}

// Refresh rotates a refresh token. Each refresh token is accepted once.
func (s *IssuerService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenSet, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.ErrInvalidGrant
	}
	key := hashToken(refreshToken)

	entry, err := s.entries.Get(ctx, domain.NamespaceRefreshToken, key)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			s.metrics.RecordOutcome(OutcomeTokenRejected)
			return nil, domain.ErrInvalidGrant
		}
		return nil, err
	}
	if err := s.entries.Delete(ctx, domain.NamespaceRefreshToken, key); err != nil {
		return nil, err
	}

	var record refreshRecord
	if err := json.Unmarshal(entry.Value, &record); err != nil || record.Email == "" {
		return nil, domain.ErrInvalidGrant
	}
	identity, err := s.identities.FindByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			s.metrics.RecordOutcome(OutcomeTokenRejected)
			return nil, domain.ErrInvalidGrant
		}
		return nil, err
	}
	if identity.UserID != record.UserID {
		s.metrics.RecordOutcome(OutcomeTokenRejected)
		return nil, domain.ErrInvalidGrant
	}

	tokens, err := s.issueTokens(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordOutcome(OutcomeTokenRefreshed)
	s.publish(ctx, events.Event{
		Type:    events.EventTokenRefreshed,
		Email:   identity.Email,
		UserID:  identity.UserID,
		Payload: events.TokenIssuedPayload{WorkspaceID: s.workspaceID, ExpiresAt: tokens.ExpiresAt},
	})
	return tokens, nil
}

// UserInfo verifies a bearer token and maps its subject to the userinfo shape.
func (s *IssuerService) UserInfo(_ context.Context, bearer string) (*domain.UserInfo, error) {
	subject, err := s.signer.Verify(bearer)
	if err != nil {
		s.metrics.RecordOutcome(OutcomeTokenRejected)
		return nil, err
	}
	if subject.WorkspaceID != s.workspaceID {
		s.metrics.RecordOutcome(OutcomeTokenRejected)
		return nil, domain.ErrInvalidClaims
	}
	return &domain.UserInfo{
		Sub:         subject.UserID,
		Email:       subject.Email,
		UserID:      subject.UserID,
		WorkspaceID: subject.WorkspaceID,
	}, nil
}

// AccessTokenTTL returns how long issued access tokens live.
func (s *IssuerService) AccessTokenTTL() time.Duration {
	return s.signer.TTL()
}

func (s *IssuerService) issueTokens(ctx context.Context, identity *domain.Identity) (*domain.TokenSet, error) {
	accessToken, expiresAt, err := s.signer.Encode(domain.Subject{
		UserID:      identity.UserID,
		Email:       identity.Email,
		WorkspaceID: s.workspaceID,
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(refreshRecord{UserID: identity.UserID, Email: repository.NormalizeEmail(identity.Email)})
	if err != nil {
		return nil, err
	}
	if err := s.entries.Put(ctx, domain.NamespaceRefreshToken, hashToken(refreshToken), payload, s.refreshTTL); err != nil {
		return nil, err
	}

	return &domain.TokenSet{
		AccessToken:  accessToken,
		TokenType:    TokenTypeBearer,
		ExpiresAt:    expiresAt,
		RefreshToken: refreshToken,
	}, nil
}

func (s *IssuerService) discardChallenge(ctx context.Context, challengeID string) error {
	if err := s.entries.Delete(ctx, domain.NamespaceChallenge, challengeID); err != nil {
		return err
	}
	return s.entries.Delete(ctx, domain.NamespacePKCEVerifier, challengeID)
}

func (s *IssuerService) reject(ctx context.Context, challengeID, email string, err error) error {
	s.metrics.RecordOutcome(OutcomeCodeRejected)
	s.publish(ctx, events.Event{
		Type:    events.EventCodeRejected,
		Email:   email,
		Payload: events.CodeRejectedPayload{ChallengeID: challengeID, Reason: err.Error()},
	})
	return err
}

func (s *IssuerService) publish(ctx context.Context, event events.Event) {
	event.ID = uuid.NewString()
	event.Timestamp = s.now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
