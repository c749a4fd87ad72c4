package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/foundly/contact-service/internal/apperr"
	"github.com/foundly/contact-service/internal/metrics"
)

// Service applies the moderation-queue invariants on top of a Store.
type Service struct {
	store Store
}

// NewService creates a moderation service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// File creates a PENDING report from reporterID against reportedUserID.
// A reporter may not hold two simultaneously PENDING reports against the
// same user; the store's partial unique index enforces that under
// concurrent filings.
func (s *Service) File(ctx context.Context, reporterID, reportedUserID string, reason Reason, description, conversationID string) (*Report, error) {
	if reporterID == reportedUserID {
		return nil, apperr.InvalidActor("cannot report yourself")
	}
	if !validReasons[reason] {
		return nil, apperr.Validation("unknown report reason %q", reason)
	}

	r := &Report{
		ID:             uuid.New().String(),
		ReporterID:     reporterID,
		ReportedUserID: reportedUserID,
		Reason:         reason,
		Description:    description,
		ConversationID: conversationID,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, r); err != nil {
		return nil, err
	}

	metrics.ReportsFiled.WithLabelValues(string(reason)).Inc()
	return r, nil
}

// Review moves a report to newStatus and stamps the triage fields. There is
// no transition-order invariant here.
func (s *Service) Review(ctx context.Context, reportID, moderatorID string, newStatus Status, adminNotes string) (*Report, error) {
	if !validStatuses[newStatus] {
		return nil, apperr.Validation("unknown report status %q", newStatus)
	}

	ok, err := s.store.Review(ctx, reportID, newStatus, moderatorID, adminNotes, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("report %s not found", reportID)
	}

	updated, err := s.store.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("report %s not found", reportID)
	}
	return updated, nil
}

// Queue returns reports in the given triage state for the moderation UI.
func (s *Service) Queue(ctx context.Context, status Status) ([]Report, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("unknown report status %q", status)
	}
	return s.store.ListByStatus(ctx, status)
}
