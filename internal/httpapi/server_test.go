package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundly/contact-service/internal/apperr"
	"github.com/foundly/contact-service/internal/auth"
	"github.com/foundly/contact-service/internal/block"
	"github.com/foundly/contact-service/internal/conversation"
	"github.com/foundly/contact-service/internal/message"
	"github.com/foundly/contact-service/internal/report"
)

// stubConversations answers every call with a fixed result or error and
// records the arguments it saw.
type stubConversations struct {
	conv    *conversation.Conversation
	convs   []conversation.Conversation
	pending int
	err     error

	gotItemID  string
	gotUserID  string
	gotInitial string
	gotConvID  string
}

func (s *stubConversations) Request(_ context.Context, itemID, requesterID, initialMessage string) (*conversation.Conversation, error) {
	s.gotItemID, s.gotUserID, s.gotInitial = itemID, requesterID, initialMessage
	return s.conv, s.err
}

func (s *stubConversations) Approve(_ context.Context, conversationID, actingUserID string) (*conversation.Conversation, error) {
	s.gotConvID, s.gotUserID = conversationID, actingUserID
	return s.conv, s.err
}

func (s *stubConversations) Reject(_ context.Context, conversationID, actingUserID string) (*conversation.Conversation, error) {
	s.gotConvID, s.gotUserID = conversationID, actingUserID
	return s.conv, s.err
}

func (s *stubConversations) Close(_ context.Context, conversationID, actingUserID string) (*conversation.Conversation, error) {
	s.gotConvID, s.gotUserID = conversationID, actingUserID
	return s.conv, s.err
}

func (s *stubConversations) Get(_ context.Context, conversationID, requestingUserID string) (*conversation.Conversation, error) {
	s.gotConvID, s.gotUserID = conversationID, requestingUserID
	return s.conv, s.err
}

func (s *stubConversations) ListForUser(_ context.Context, userID string, status conversation.Status) ([]conversation.Conversation, error) {
	s.gotUserID = userID
	return s.convs, s.err
}

func (s *stubConversations) ListPending(_ context.Context, ownerID string) ([]conversation.Conversation, error) {
	s.gotUserID = ownerID
	return s.convs, s.err
}

func (s *stubConversations) CountPending(_ context.Context, ownerID string) (int, error) {
	return s.pending, s.err
}

type stubMessages struct {
	msg    *message.Message
	msgs   []message.Message
	unread int
	err    error

	gotConvID  string
	gotSender  string
	gotContent string
}

func (s *stubMessages) Send(_ context.Context, conversationID, senderID, content string) (*message.Message, error) {
	s.gotConvID, s.gotSender, s.gotContent = conversationID, senderID, content
	return s.msg, s.err
}

func (s *stubMessages) ListAndMarkRead(_ context.Context, conversationID, requestingUserID string) ([]message.Message, error) {
	s.gotConvID, s.gotSender = conversationID, requestingUserID
	return s.msgs, s.err
}

func (s *stubMessages) CountUnread(_ context.Context, userID string) (int, error) {
	return s.unread, s.err
}

type stubBlocks struct {
	block *block.Block
	list  []block.Block
	err   error

	gotBlocker string
	gotTarget  string
}

func (s *stubBlocks) Block(_ context.Context, blockerID, targetID, reason string) (*block.Block, error) {
	s.gotBlocker, s.gotTarget = blockerID, targetID
	return s.block, s.err
}

func (s *stubBlocks) Unblock(_ context.Context, blockerID, targetID string) error {
	s.gotBlocker, s.gotTarget = blockerID, targetID
	return s.err
}

func (s *stubBlocks) List(_ context.Context, blockerID string) ([]block.Block, error) {
	return s.list, s.err
}

type stubReports struct {
	report *report.Report
	queue  []report.Report
	err    error

	gotReporter string
	gotReported string
	gotStatus   report.Status
}

func (s *stubReports) File(_ context.Context, reporterID, reportedUserID string, reason report.Reason, description, conversationID string) (*report.Report, error) {
	s.gotReporter, s.gotReported = reporterID, reportedUserID
	return s.report, s.err
}

func (s *stubReports) Review(_ context.Context, reportID, moderatorID string, newStatus report.Status, adminNotes string) (*report.Report, error) {
	s.gotStatus = newStatus
	return s.report, s.err
}

func (s *stubReports) Queue(_ context.Context, status report.Status) ([]report.Report, error) {
	s.gotStatus = status
	return s.queue, s.err
}

const testSecret = "test-secret"

type serverFixture struct {
	server   *Server
	verifier *auth.Verifier
	convs    *stubConversations
	msgs     *stubMessages
	blocks   *stubBlocks
	reports  *stubReports
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		verifier: auth.NewVerifier(testSecret),
		convs:    &stubConversations{},
		msgs:     &stubMessages{},
		blocks:   &stubBlocks{},
		reports:  &stubReports{},
	}
	f.server = NewServer(f.verifier, f.convs, f.msgs, f.blocks, f.reports)
	return f
}

// do performs a request against the router as the given user. Empty userID
// means no Authorization header.
func (f *serverFixture) do(t *testing.T, method, path, body, userID string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		token, err := f.verifier.Sign(userID, roles, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAuth_MissingTokenRejected(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/conversations", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_GarbageTokenRejected(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestConversation_Created(t *testing.T) {
	f := newServerFixture(t)
	f.convs.conv = &conversation.Conversation{ID: "conv-1", Status: conversation.StatusPending}

	rec := f.do(t, http.MethodPost, "/conversations/request",
		`{"itemId":"item-1","initialMessage":"hi"}`, "alice")

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "item-1", f.convs.gotItemID)
	require.Equal(t, "alice", f.convs.gotUserID)
	require.Equal(t, "hi", f.convs.gotInitial)
}

func TestRequestConversation_MissingItemID(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/conversations/request", `{"initialMessage":"hi"}`, "alice")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorKind(t, rec))
}

// Every domain error kind maps onto its HTTP status with the kind in the
// body.
func TestErrorKindMapping(t *testing.T) {
	cases := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindInvalidActor, http.StatusBadRequest},
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindPermissionDenied, http.StatusForbidden},
		{apperr.KindBlocked, http.StatusForbidden},
		{apperr.KindInvalidStateTransition, http.StatusConflict},
		{apperr.KindDuplicateRequest, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f := newServerFixture(t)
			f.convs.err = apperr.New(tc.kind, "nope")

			rec := f.do(t, http.MethodPost, "/conversations/request", `{"itemId":"item-1"}`, "alice")
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, string(tc.kind), errorKind(t, rec))
		})
	}
}

func TestApprove_RoutesPathID(t *testing.T) {
	f := newServerFixture(t)
	f.convs.conv = &conversation.Conversation{ID: "conv-7", Status: conversation.StatusApproved}

	rec := f.do(t, http.MethodPost, "/conversations/conv-7/approve", "", "owner")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "conv-7", f.convs.gotConvID)
	require.Equal(t, "owner", f.convs.gotUserID)
}

func TestGetConversation_RoutesPathID(t *testing.T) {
	f := newServerFixture(t)
	f.convs.conv = &conversation.Conversation{ID: "conv-3"}

	rec := f.do(t, http.MethodGet, "/conversations/conv-3", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "conv-3", f.convs.gotConvID)
	require.Equal(t, "alice", f.convs.gotUserID)
}

func TestListConversations_EmptyIsJSONArray(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/conversations?status=APPROVED", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestSendMessage_Created(t *testing.T) {
	f := newServerFixture(t)
	f.msgs.msg = &message.Message{ID: "msg-1", Content: "hello"}

	rec := f.do(t, http.MethodPost, "/messages/send",
		`{"conversationId":"conv-1","content":"hello"}`, "alice")

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "conv-1", f.msgs.gotConvID)
	require.Equal(t, "alice", f.msgs.gotSender)
	require.Equal(t, "hello", f.msgs.gotContent)
}

func TestListMessages_RoutesToCaller(t *testing.T) {
	f := newServerFixture(t)
	f.msgs.msgs = []message.Message{{ID: "msg-1"}}

	rec := f.do(t, http.MethodGet, "/conversations/conv-1/messages", "", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "conv-1", f.msgs.gotConvID)
	require.Equal(t, "bob", f.msgs.gotSender)
}

func TestUnreadCount_AggregatesBothCounters(t *testing.T) {
	f := newServerFixture(t)
	f.msgs.unread = 4
	f.convs.pending = 2

	rec := f.do(t, http.MethodGet, "/unread-count", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var body unreadCountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 4, body.UnreadMessages)
	require.Equal(t, 2, body.PendingRequests)
}

func TestBlock_Created(t *testing.T) {
	f := newServerFixture(t)
	f.blocks.block = &block.Block{ID: "blk-1", BlockerID: "alice", BlockedID: "bob"}

	rec := f.do(t, http.MethodPost, "/users/block", `{"userId":"bob","reason":"spam"}`, "alice")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "alice", f.blocks.gotBlocker)
	require.Equal(t, "bob", f.blocks.gotTarget)
}

func TestUnblock_NoContent(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodDelete, "/users/block/bob", "", "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "alice", f.blocks.gotBlocker)
	require.Equal(t, "bob", f.blocks.gotTarget)
}

func TestFileReport_Created(t *testing.T) {
	f := newServerFixture(t)
	f.reports.report = &report.Report{ID: "rep-1", Status: report.StatusPending}

	rec := f.do(t, http.MethodPost, "/users/report",
		`{"userId":"bob","reason":"SCAM","description":"fake listing"}`, "alice")

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "alice", f.reports.gotReporter)
	require.Equal(t, "bob", f.reports.gotReported)
}

func TestReviewReport_RequiresModeratorRole(t *testing.T) {
	f := newServerFixture(t)
	f.reports.report = &report.Report{ID: "rep-1"}

	rec := f.do(t, http.MethodPut, "/admin/reports/rep-1", `{"status":"RESOLVED"}`, "alice")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, "/admin/reports/rep-1", `{"status":"RESOLVED"}`, "alice", auth.RoleModerator)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, report.StatusResolved, f.reports.gotStatus)
}

func TestReportQueue_DefaultsToPending(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/reports", "", "mod", auth.RoleModerator)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, report.StatusPending, f.reports.gotStatus)
}

func TestMalformedBodyRejected(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/messages/send", `{"conversationId":`, "alice")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
