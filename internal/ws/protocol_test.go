package ws

import (
	"encoding/json"
	"net"
	"testing"
	"time"
)

// nopConn satisfies net.Conn for manager tests that never touch the wire.
type nopConn struct{}

func (nopConn) Read(b []byte) (int, error)         { return 0, nil }
func (nopConn) Write(b []byte) (int, error)        { return len(b), nil }
func (nopConn) Close() error                       { return nil }
func (nopConn) LocalAddr() net.Addr                { return nil }
func (nopConn) RemoteAddr() net.Addr               { return nil }
func (nopConn) SetDeadline(t time.Time) error      { return nil }
func (nopConn) SetReadDeadline(t time.Time) error  { return nil }
func (nopConn) SetWriteDeadline(t time.Time) error { return nil }

func TestParseClientFrame_Subscribe(t *testing.T) {
	f, err := parseClientFrame([]byte(`{"type":"subscribe","conversationId":"conv-1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Type != TypeSubscribe {
		t.Errorf("expected subscribe, got %s", f.Type)
	}
	if f.ConversationID != "conv-1" {
		t.Errorf("conversation id not parsed: %q", f.ConversationID)
	}
}

func TestParseClientFrame_Typing(t *testing.T) {
	f, err := parseClientFrame([]byte(`{"type":"typing","conversationId":"conv-1","isTyping":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsTyping {
		t.Error("isTyping not parsed")
	}
}

func TestParseClientFrame_MissingType(t *testing.T) {
	if _, err := parseClientFrame([]byte(`{"conversationId":"conv-1"}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestParseClientFrame_Malformed(t *testing.T) {
	if _, err := parseClientFrame([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestMarshalServerFrame_OmitsEmptyFields(t *testing.T) {
	data := marshalServerFrame(serverFrame{Type: TypePong})

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(raw) != 1 {
		t.Errorf("expected only the type field, got %v", raw)
	}
}

// ---------- Manager tests ----------

func TestManager_RemoveReportsLastForUser(t *testing.T) {
	m := NewManager()

	a := &Connection{ID: "c1", UserID: "alice", Conn: nopConn{}}
	b := &Connection{ID: "c2", UserID: "alice", Conn: nopConn{}}
	m.Add(a)
	m.Add(b)

	found, last := m.Remove("c1")
	if !found {
		t.Fatal("expected c1 present")
	}
	if last {
		t.Error("alice still holds c2; not her last connection")
	}

	found, last = m.Remove("c2")
	if !found || !last {
		t.Errorf("expected (true, true) removing the final connection, got (%v, %v)", found, last)
	}

	if m.Count() != 0 {
		t.Errorf("expected empty manager, got %d", m.Count())
	}
}

func TestManager_RemoveUnknownIsNoOp(t *testing.T) {
	m := NewManager()

	found, last := m.Remove("ghost")
	if found || last {
		t.Errorf("expected (false, false), got (%v, %v)", found, last)
	}
}
