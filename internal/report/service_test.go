package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foundly/contact-service/internal/apperr"
)

// memStore is an in-memory Store enforcing one PENDING report per
// (reporter, reported) pair, the way the partial unique index does.
type memStore struct {
	mu      sync.Mutex
	reports map[string]*Report
}

func newMemStore() *memStore {
	return &memStore{reports: make(map[string]*Report)}
}

func (s *memStore) Insert(ctx context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reports {
		if existing.ReporterID == r.ReporterID &&
			existing.ReportedUserID == r.ReportedUserID &&
			existing.Status == StatusPending {
			return apperr.New(apperr.KindDuplicateReport,
				"a pending report against user %s already exists", r.ReportedUserID)
		}
	}
	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) Review(ctx context.Context, id string, status Status, moderatorID, adminNotes string, reviewedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return false, nil
	}
	r.Status = status
	r.ReviewedByID = moderatorID
	t := reviewedAt
	r.ReviewedAt = &t
	if adminNotes != "" {
		r.AdminNotes = adminNotes
	}
	return true, nil
}

func (s *memStore) ListByStatus(ctx context.Context, status Status) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Report
	for _, r := range s.reports {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func TestFile_CreatesPendingReport(t *testing.T) {
	s := NewService(newMemStore())

	r, err := s.File(context.Background(), "alice", "bob", ReasonScam, "fake listing", "conv-1")
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("expected PENDING, got %s", r.Status)
	}
	if r.ConversationID != "conv-1" {
		t.Errorf("conversation tag not carried: %q", r.ConversationID)
	}
}

func TestFile_SelfReportFails(t *testing.T) {
	s := NewService(newMemStore())

	_, err := s.File(context.Background(), "alice", "alice", ReasonSpam, "", "")
	if !apperr.IsKind(err, apperr.KindInvalidActor) {
		t.Fatalf("expected InvalidActor, got %v", err)
	}
}

func TestFile_UnknownReasonFails(t *testing.T) {
	s := NewService(newMemStore())

	_, err := s.File(context.Background(), "alice", "bob", Reason("GRUMPY"), "", "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestFile_SecondPendingAgainstSameUserFails(t *testing.T) {
	s := NewService(newMemStore())

	if _, err := s.File(context.Background(), "alice", "bob", ReasonHarassment, "", ""); err != nil {
		t.Fatalf("first report: %v", err)
	}
	_, err := s.File(context.Background(), "alice", "bob", ReasonScam, "", "")
	if !apperr.IsKind(err, apperr.KindDuplicateReport) {
		t.Fatalf("expected DuplicateReport, got %v", err)
	}
}

// Once the first report leaves PENDING, the reporter may file again.
func TestFile_AllowedAfterFirstReportResolved(t *testing.T) {
	s := NewService(newMemStore())

	first, _ := s.File(context.Background(), "alice", "bob", ReasonSpam, "", "")
	if _, err := s.Review(context.Background(), first.ID, "mod", StatusResolved, ""); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := s.File(context.Background(), "alice", "bob", ReasonSpam, "again", ""); err != nil {
		t.Fatalf("expected a new report after resolution, got %v", err)
	}
}

func TestReview_StampsTriageFields(t *testing.T) {
	s := NewService(newMemStore())

	filed, _ := s.File(context.Background(), "alice", "bob", ReasonOther, "", "")
	reviewed, err := s.Review(context.Background(), filed.ID, "mod-1", StatusReviewing, "looking into it")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != StatusReviewing {
		t.Errorf("expected REVIEWING, got %s", reviewed.Status)
	}
	if reviewed.ReviewedByID != "mod-1" {
		t.Errorf("moderator not stamped: %q", reviewed.ReviewedByID)
	}
	if reviewed.ReviewedAt == nil {
		t.Error("reviewed_at not stamped")
	}
	if reviewed.AdminNotes != "looking into it" {
		t.Errorf("notes not stamped: %q", reviewed.AdminNotes)
	}
}

// The queue is deliberately loose: any ordering of triage states is legal.
func TestReview_AnyTransitionOrder(t *testing.T) {
	s := NewService(newMemStore())

	filed, _ := s.File(context.Background(), "alice", "bob", ReasonOther, "", "")
	for _, status := range []Status{StatusDismissed, StatusReviewing, StatusResolved, StatusPending} {
		if _, err := s.Review(context.Background(), filed.ID, "mod", status, ""); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}
}

func TestReview_UnknownReportFails(t *testing.T) {
	s := NewService(newMemStore())

	_, err := s.Review(context.Background(), "missing", "mod", StatusResolved, "")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestReview_UnknownStatusFails(t *testing.T) {
	s := NewService(newMemStore())

	filed, _ := s.File(context.Background(), "alice", "bob", ReasonOther, "", "")
	_, err := s.Review(context.Background(), filed.ID, "mod", Status("SHREDDED"), "")
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestQueue_FiltersByStatus(t *testing.T) {
	s := NewService(newMemStore())

	s.File(context.Background(), "alice", "bob", ReasonSpam, "", "")
	second, _ := s.File(context.Background(), "carol", "bob", ReasonScam, "", "")
	s.Review(context.Background(), second.ID, "mod", StatusResolved, "")

	pending, err := s.Queue(context.Background(), StatusPending)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(pending) != 1 || pending[0].ReporterID != "alice" {
		t.Errorf("expected alice's pending report, got %v", pending)
	}

	resolved, _ := s.Queue(context.Background(), StatusResolved)
	if len(resolved) != 1 || resolved[0].ReporterID != "carol" {
		t.Errorf("expected carol's resolved report, got %v", resolved)
	}
}
