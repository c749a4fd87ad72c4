// Package httpapi is the REST surface of the contact service: contact
// requests and the approval state machine, messaging, blocks, and the
// moderation queue. Request and response bodies are explicit structs per
// operation; domain outcomes surface as machine-readable error kinds.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foundly/contact-service/internal/auth"
	"github.com/foundly/contact-service/internal/block"
	"github.com/foundly/contact-service/internal/conversation"
	"github.com/foundly/contact-service/internal/message"
	"github.com/foundly/contact-service/internal/metrics"
	"github.com/foundly/contact-service/internal/report"
)

// ConversationService is the registry surface the handlers consume.
type ConversationService interface {
	Request(ctx context.Context, itemID, requesterID, initialMessage string) (*conversation.Conversation, error)
	Approve(ctx context.Context, conversationID, actingUserID string) (*conversation.Conversation, error)
	Reject(ctx context.Context, conversationID, actingUserID string) (*conversation.Conversation, error)
	Close(ctx context.Context, conversationID, actingUserID string) (*conversation.Conversation, error)
	Get(ctx context.Context, conversationID, requestingUserID string) (*conversation.Conversation, error)
	ListForUser(ctx context.Context, userID string, status conversation.Status) ([]conversation.Conversation, error)
	ListPending(ctx context.Context, ownerID string) ([]conversation.Conversation, error)
	CountPending(ctx context.Context, ownerID string) (int, error)
}

// MessageService is the message-log surface the handlers consume.
type MessageService interface {
	Send(ctx context.Context, conversationID, senderID, content string) (*message.Message, error)
	ListAndMarkRead(ctx context.Context, conversationID, requestingUserID string) ([]message.Message, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// BlockService is the block-list surface the handlers consume.
type BlockService interface {
	Block(ctx context.Context, blockerID, targetID, reason string) (*block.Block, error)
	Unblock(ctx context.Context, blockerID, targetID string) error
	List(ctx context.Context, blockerID string) ([]block.Block, error)
}

// ReportService is the moderation-queue surface the handlers consume.
type ReportService interface {
	File(ctx context.Context, reporterID, reportedUserID string, reason report.Reason, description, conversationID string) (*report.Report, error)
	Review(ctx context.Context, reportID, moderatorID string, newStatus report.Status, adminNotes string) (*report.Report, error)
	Queue(ctx context.Context, status report.Status) ([]report.Report, error)
}

// Server holds the wired services and builds the router.
type Server struct {
	verifier      *auth.Verifier
	conversations ConversationService
	messages      MessageService
	blocks        BlockService
	reports       ReportService
}

// NewServer wires the REST layer.
func NewServer(verifier *auth.Verifier, convs ConversationService, msgs MessageService, blocks BlockService, reports ReportService) *Server {
	return &Server{
		verifier:      verifier,
		conversations: convs,
		messages:      msgs,
		blocks:        blocks,
		reports:       reports,
	}
}

// Router builds the authenticated API router. The caller mounts /ws,
// /health and /metrics alongside it.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withMetrics)
	r.Use(s.withAuth)

	r.HandleFunc("/conversations/request", s.handleRequestConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/pending", s.handleListPending).Methods(http.MethodGet)
	r.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/approve", s.handleApprove).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/reject", s.handleReject).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/close", s.handleClose).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)

	r.HandleFunc("/messages/send", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/unread-count", s.handleUnreadCount).Methods(http.MethodGet)

	r.HandleFunc("/users/block", s.handleBlock).Methods(http.MethodPost)
	r.HandleFunc("/users/block/{id}", s.handleUnblock).Methods(http.MethodDelete)
	r.HandleFunc("/users/blocks", s.handleListBlocks).Methods(http.MethodGet)
	r.HandleFunc("/users/report", s.handleFileReport).Methods(http.MethodPost)

	r.HandleFunc("/admin/reports", s.handleReportQueue).Methods(http.MethodGet)
	r.HandleFunc("/admin/reports/{id}", s.handleReviewReport).Methods(http.MethodPut)

	return r
}

// withMetrics records request latency per route template.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(route))
		defer timer.ObserveDuration()
		next.ServeHTTP(w, r)
	})
}
