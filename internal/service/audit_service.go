package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/borderland/pin-issuer/internal/events"
)

// AuditService writes issuer events to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventCodeIssued, a.handleCodeIssued)
	a.dispatcher.Subscribe(events.EventCodeRejected, a.handleCodeRejected)
	a.dispatcher.Subscribe(events.EventTokenIssued, a.handleTokenIssued)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleTokenIssued)
}

func (a *AuditService) handleCodeIssued(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.CodeIssuedPayload)
	a.logger.Info("CodeIssued",
		zap.String("event_id", event.ID),
		zap.String("email", event.Email),
		zap.String("user_id", event.UserID),
		zap.String("challenge_id", payload.ChallengeID),
		zap.String("client_id", payload.ClientID),
		zap.Bool("delivered", payload.Delivered))
	return nil
}

func (a *AuditService) handleCodeRejected(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.CodeRejectedPayload)
	a.logger.Warn("CodeRejected",
		zap.String("event_id", event.ID),
		zap.String("email", event.Email),
		zap.String("challenge_id", payload.ChallengeID),
		zap.String("reason", payload.Reason))
	return nil
}

func (a *AuditService) handleTokenIssued(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TokenIssuedPayload)
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("user_id", event.UserID),
		zap.String("workspace_id", payload.WorkspaceID),
		zap.Time("expires_at", payload.ExpiresAt))
	return nil
}
