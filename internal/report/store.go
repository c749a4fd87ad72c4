package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/foundly/contact-service/internal/apperr"
)

// Store is the persistence surface the moderation service needs. The
// reports table carries a partial unique index on (reporter_id,
// reported_user_id) for PENDING rows; Insert maps a violation to
// DuplicateReport.
type Store interface {
	Insert(ctx context.Context, r *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	// Review stamps the triage fields. Returns false if no report exists
	// with the given id.
	Review(ctx context.Context, id string, status Status, moderatorID, adminNotes string, reviewedAt time.Time) (bool, error)
	ListByStatus(ctx context.Context, status Status) ([]Report, error)
}

// PGStore manages reports in Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a report store backed by the given database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Insert persists a new PENDING report.
func (s *PGStore) Insert(ctx context.Context, r *Report) error {
	const query = `
		INSERT INTO reports
			(id, reporter_id, reported_user_id, reason, description, conversation_id, status, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ReporterID, r.ReportedUserID, string(r.Reason),
		r.Description, r.ConversationID, string(r.Status), r.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.New(apperr.KindDuplicateReport,
			"a pending report against user %s already exists", r.ReportedUserID)
	}
	if err != nil {
		return fmt.Errorf("report: insert: %w", err)
	}
	return nil
}

// Get fetches one report by id. Returns (nil, nil) if absent.
func (s *PGStore) Get(ctx context.Context, id string) (*Report, error) {
	query := selectReports + ` WHERE id = $1`

	r, err := scanReport(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report: get %s: %w", id, err)
	}
	return r, nil
}

// Review stamps status, reviewed_at, reviewed_by_id and optional notes.
func (s *PGStore) Review(ctx context.Context, id string, status Status, moderatorID, adminNotes string, reviewedAt time.Time) (bool, error) {
	const query = `
		UPDATE reports
		SET status = $1, reviewed_at = $2, reviewed_by_id = $3,
		    admin_notes = COALESCE(NULLIF($4, ''), admin_notes)
		WHERE id = $5`

	res, err := s.db.ExecContext(ctx, query, string(status), reviewedAt, moderatorID, adminNotes, id)
	if err != nil {
		return false, fmt.Errorf("report: review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("report: review rows: %w", err)
	}
	return n > 0, nil
}

// ListByStatus returns reports in the given triage state, oldest first.
func (s *PGStore) ListByStatus(ctx context.Context, status Status) ([]Report, error) {
	query := selectReports + ` WHERE status = $1 ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("report: list: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("report: scan: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: rows: %w", err)
	}
	return out, nil
}

const selectReports = `
	SELECT id, reporter_id, reported_user_id, reason, COALESCE(description, ''),
	       COALESCE(conversation_id, ''), status, created_at, reviewed_at,
	       COALESCE(reviewed_by_id, ''), COALESCE(admin_notes, '')
	FROM reports`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*Report, error) {
	var r Report
	var reason, status string
	var reviewedAt sql.NullTime
	err := row.Scan(&r.ID, &r.ReporterID, &r.ReportedUserID, &reason, &r.Description,
		&r.ConversationID, &status, &r.CreatedAt, &reviewedAt, &r.ReviewedByID, &r.AdminNotes)
	if err != nil {
		return nil, err
	}
	r.Reason = Reason(reason)
	r.Status = Status(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
