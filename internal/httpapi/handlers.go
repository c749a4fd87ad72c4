package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/foundly/contact-service/internal/apperr"
	"github.com/foundly/contact-service/internal/auth"
	"github.com/foundly/contact-service/internal/block"
	"github.com/foundly/contact-service/internal/conversation"
	"github.com/foundly/contact-service/internal/message"
	"github.com/foundly/contact-service/internal/report"
)

type requestConversationBody struct {
	ItemID         string `json:"itemId"`
	InitialMessage string `json:"initialMessage"`
}

func (s *Server) handleRequestConversation(w http.ResponseWriter, r *http.Request) {
	var body requestConversationBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ItemID == "" {
		respondErrorStatus(w, http.StatusBadRequest, string(apperr.KindValidation), "itemId is required")
		return
	}

	caller := callerFrom(r)
	conv, err := s.conversations.Request(r.Context(), body.ItemID, caller.UserID, body.InitialMessage)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	status := conversation.Status(r.URL.Query().Get("status"))

	convs, err := s.conversations.ListForUser(r.Context(), caller.UserID, status)
	if err != nil {
		respondError(w, err)
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	respondJSON(w, http.StatusOK, convs)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	convs, err := s.conversations.ListPending(r.Context(), caller.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	respondJSON(w, http.StatusOK, convs)
}

// handleTransition is the shared shape of the three state-machine endpoints:
// conversation id from the path, authenticated actor, updated conversation out.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, conversationID, actingUserID string) (*conversation.Conversation, error)) {
	id := mux.Vars(r)["id"]
	caller := callerFrom(r)

	conv, err := op(r.Context(), id, caller.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	caller := callerFrom(r)

	conv, err := s.conversations.Get(r.Context(), id, caller.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.conversations.Approve)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.conversations.Reject)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.conversations.Close)
}

type sendMessageBody struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ConversationID == "" {
		respondErrorStatus(w, http.StatusBadRequest, string(apperr.KindValidation), "conversationId is required")
		return
	}

	caller := callerFrom(r)
	msg, err := s.messages.Send(r.Context(), body.ConversationID, caller.UserID, body.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	caller := callerFrom(r)

	msgs, err := s.messages.ListAndMarkRead(r.Context(), id, caller.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	respondJSON(w, http.StatusOK, msgs)
}

// unreadCountResponse aggregates the two badge counters a client shows:
// unread chat messages and contact requests awaiting the caller as owner.
type unreadCountResponse struct {
	UnreadMessages  int `json:"unreadMessages"`
	PendingRequests int `json:"pendingRequests"`
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	unread, err := s.messages.CountUnread(r.Context(), caller.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	pending, err := s.conversations.CountPending(r.Context(), caller.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, unreadCountResponse{UnreadMessages: unread, PendingRequests: pending})
}

type blockBody struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var body blockBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" {
		respondErrorStatus(w, http.StatusBadRequest, string(apperr.KindValidation), "userId is required")
		return
	}

	caller := callerFrom(r)
	b, err := s.blocks.Block(r.Context(), caller.UserID, body.UserID, body.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	targetID := mux.Vars(r)["id"]
	caller := callerFrom(r)

	if err := s.blocks.Unblock(r.Context(), caller.UserID, targetID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	blocks, err := s.blocks.List(r.Context(), caller.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	if blocks == nil {
		blocks = []block.Block{}
	}
	respondJSON(w, http.StatusOK, blocks)
}

type fileReportBody struct {
	UserID         string `json:"userId"`
	Reason         string `json:"reason"`
	Description    string `json:"description"`
	ConversationID string `json:"conversationId"`
}

func (s *Server) handleFileReport(w http.ResponseWriter, r *http.Request) {
	var body fileReportBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.UserID == "" {
		respondErrorStatus(w, http.StatusBadRequest, string(apperr.KindValidation), "userId is required")
		return
	}

	caller := callerFrom(r)
	rep, err := s.reports.File(r.Context(), caller.UserID, body.UserID,
		report.Reason(body.Reason), body.Description, body.ConversationID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleReportQueue(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if !caller.HasRole(auth.RoleModerator) {
		respondError(w, apperr.PermissionDenied("moderator role required"))
		return
	}

	status := report.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = report.StatusPending
	}

	reports, err := s.reports.Queue(r.Context(), status)
	if err != nil {
		respondError(w, err)
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	respondJSON(w, http.StatusOK, reports)
}

type reviewReportBody struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

func (s *Server) handleReviewReport(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if !caller.HasRole(auth.RoleModerator) {
		respondError(w, apperr.PermissionDenied("moderator role required"))
		return
	}

	var body reviewReportBody
	if !decodeBody(w, r, &body) {
		return
	}

	id := mux.Vars(r)["id"]
	rep, err := s.reports.Review(r.Context(), id, caller.UserID, report.Status(body.Status), body.AdminNotes)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}
