// Package ws is the real-time gateway. It upgrades authenticated HTTP
// requests to WebSocket connections, bridges each connection onto its
// user's broadcast subject (plus any conversation subjects the client
// subscribes to), and relays typing indicators. Delivery is best-effort,
// at-most-once: clients that miss events re-sync through the REST API.
package ws

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/foundly/contact-service/internal/auth"
	"github.com/foundly/contact-service/internal/broadcast"
	"github.com/foundly/contact-service/internal/conversation"
	"github.com/foundly/contact-service/internal/metrics"
	"github.com/foundly/contact-service/internal/presence"
)

// Config holds gateway tunables.
type Config struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
	}
}

// Gateway owns the live connections and their broadcast subscriptions.
type Gateway struct {
	config   Config
	verifier *auth.Verifier
	bc       *broadcast.NATSBroadcaster
	presence *presence.Store
	convs    conversation.Store
	conns    *Manager
	done     chan struct{}
}

// NewGateway wires the gateway and starts its heartbeat monitor.
func NewGateway(config Config, verifier *auth.Verifier, bc *broadcast.NATSBroadcaster, pres *presence.Store, convs conversation.Store) *Gateway {
	g := &Gateway{
		config:   config,
		verifier: verifier,
		bc:       bc,
		presence: pres,
		convs:    convs,
		conns:    NewManager(),
		done:     make(chan struct{}),
	}
	go g.heartbeatLoop()
	return g
}

// HandleUpgrade authenticates the request and upgrades it to a WebSocket
// connection. The token comes from the Authorization header or, for browser
// clients that cannot set headers on ws dials, a "token" query parameter.
func (g *Gateway) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := g.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	c := &Connection{
		ID:        uuid.New().String(),
		UserID:    claims.UserID,
		Conn:      conn,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}
	g.conns.Add(c)
	metrics.ConnectionsTotal.Inc()

	// Personal notification channel: everything published to
	// user.<id> lands on this connection.
	if err := g.bc.SubscribeUser(c.ID, c.UserID, func(data []byte) {
		g.deliver(c, data)
	}); err != nil {
		log.Printf("ws: user subscription for %s: %v", c.UserID, err)
		g.remove(c)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := g.presence.SetOnline(ctx, c.UserID); err != nil {
		log.Printf("ws: presence online for %s: %v", c.UserID, err)
	}
	g.announceStatus(ctx, c.UserID, true)

	log.Printf("ws: connected user=%s conn=%s (total=%d)", c.UserID, c.ID, g.conns.Count())
	go g.readLoop(c)
}

// readLoop reads frames until the connection dies. Control frames are
// handled inline so they never interleave with application writes.
func (g *Gateway) readLoop(c *Connection) {
	defer g.remove(c)

	for {
		if g.config.ReadTimeout > 0 {
			_ = c.Conn.SetReadDeadline(time.Now().Add(g.config.ReadTimeout))
		}

		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// No traffic inside the read window; the heartbeat decides
				// whether the connection is dead.
				continue
			}
			return
		}

		c.LastPing = time.Now()

		if header.OpCode.IsControl() {
			switch header.OpCode {
			case ws.OpClose:
				return
			case ws.OpPing:
				_ = c.WritePong()
			}
			// Pong: LastPing already updated.
			continue
		}

		data := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, data); err != nil {
				return
			}
		}
		if len(data) == 0 {
			continue
		}

		g.dispatch(c, data)
	}
}

// dispatch routes one client frame.
func (g *Gateway) dispatch(c *Connection, data []byte) {
	frame, err := parseClientFrame(data)
	if err != nil {
		g.deliver(c, marshalServerFrame(serverFrame{
			Type: TypeError, Code: "parse_error", Message: "invalid frame",
		}))
		return
	}

	switch frame.Type {
	case TypePing:
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = g.presence.Refresh(ctx, c.UserID)
		cancel()
		g.deliver(c, marshalServerFrame(serverFrame{Type: TypePong}))

	case TypeSubscribe:
		g.handleSubscribe(c, frame.ConversationID)

	case TypeTyping:
		g.handleTyping(c, frame.ConversationID, frame.IsTyping)

	default:
		g.deliver(c, marshalServerFrame(serverFrame{
			Type: TypeError, Code: "unsupported_type", Message: "unsupported frame type",
		}))
	}
}

// handleSubscribe attaches the connection to a conversation subject after a
// participant check.
func (g *Gateway) handleSubscribe(c *Connection, conversationID string) {
	if !g.participant(c, conversationID) {
		return
	}

	if err := g.bc.SubscribeConversation(c.ID, conversationID, func(data []byte) {
		g.deliver(c, data)
	}); err != nil {
		log.Printf("ws: conversation subscription %s for %s: %v", conversationID, c.UserID, err)
		g.deliver(c, marshalServerFrame(serverFrame{
			Type: TypeError, Code: "subscribe_failed", Message: "could not subscribe",
		}))
		return
	}

	g.deliver(c, marshalServerFrame(serverFrame{Type: TypeSubscribed, ConversationID: conversationID}))
}

// handleTyping relays a typing indicator onto the conversation subject.
// Typing carries no persisted state and may be dropped silently.
func (g *Gateway) handleTyping(c *Connection, conversationID string, isTyping bool) {
	if !g.participant(c, conversationID) {
		return
	}
	g.bc.ToConversation(conversationID, broadcast.EventTyping, broadcast.TypingEvent{
		ConversationID: conversationID,
		UserID:         c.UserID,
		IsTyping:       isTyping,
	})
}

// participant checks that the connection's user belongs to the conversation;
// failures are reported to the client and swallowed.
func (g *Gateway) participant(c *Connection, conversationID string) bool {
	if conversationID == "" {
		g.deliver(c, marshalServerFrame(serverFrame{
			Type: TypeError, Code: "missing_conversation", Message: "conversationId is required",
		}))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conv, err := g.convs.Get(ctx, conversationID)
	if err != nil {
		log.Printf("ws: conversation lookup %s: %v", conversationID, err)
		return false
	}
	if conv == nil || !conv.IsParticipant(c.UserID) {
		g.deliver(c, marshalServerFrame(serverFrame{
			Type: TypeError, Code: "forbidden", Message: "not a participant",
		}))
		return false
	}
	return true
}

// deliver writes a frame to the connection, honoring the write timeout.
// Write failures are not fatal here; the read loop notices dead peers.
func (g *Gateway) deliver(c *Connection, data []byte) {
	if g.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
	}
	if err := c.Write(data); err != nil {
		log.Printf("ws: deliver to user=%s conn=%s: %v", c.UserID, c.ID, err)
	}
	_ = c.Conn.SetWriteDeadline(time.Time{})
}

// remove tears the connection down: broadcast subscriptions, presence, and
// the manager entry. Safe to call twice; only the first caller cleans up.
func (g *Gateway) remove(c *Connection) {
	g.bc.UnsubscribeOwner(c.ID)

	found, lastForUser := g.conns.Remove(c.ID)
	if !found {
		return
	}
	metrics.ConnectionsTotal.Dec()

	if lastForUser {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := g.presence.SetOffline(ctx, c.UserID); err != nil {
			log.Printf("ws: presence offline for %s: %v", c.UserID, err)
		}
		g.announceStatus(ctx, c.UserID, false)
	}

	log.Printf("ws: disconnected user=%s conn=%s (total=%d)", c.UserID, c.ID, g.conns.Count())
}

// announceStatus publishes ONLINE_STATUS to the user's approved
// conversations so live partners see them come and go.
func (g *Gateway) announceStatus(ctx context.Context, userID string, online bool) {
	convs, err := g.convs.ListByParticipant(ctx, userID, conversation.StatusApproved)
	if err != nil {
		log.Printf("ws: list conversations for status announce %s: %v", userID, err)
		return
	}
	for i := range convs {
		g.bc.ToConversation(convs[i].ID, broadcast.EventOnlineStatus, broadcast.OnlineStatusEvent{
			UserID: userID,
			Online: online,
		})
	}
}

// heartbeatLoop pings all connections on an interval and evicts those with
// no activity within interval + timeout.
func (g *Gateway) heartbeatLoop() {
	ticker := time.NewTicker(g.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			deadline := g.config.HeartbeatInterval + g.config.HeartbeatTimeout
			now := time.Now()
			for _, c := range g.conns.All() {
				if now.Sub(c.LastPing) > deadline {
					log.Printf("ws: heartbeat timeout user=%s conn=%s", c.UserID, c.ID)
					g.remove(c)
					continue
				}
				if err := c.WritePing(); err != nil {
					g.remove(c)
				}
			}
		}
	}
}

// Shutdown stops the heartbeat and closes every connection.
func (g *Gateway) Shutdown() {
	close(g.done)
	for _, c := range g.conns.All() {
		g.remove(c)
	}
	log.Printf("ws: gateway stopped")
}
