package notify

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
	"github.com/aigents-hub/aigents-api/pkg/models"
)

type recordSocket struct {
	mu   sync.Mutex
	open bool
	sent []Envelope
	fail bool
}

func (s *recordSocket) SendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("send failed")
	}
	s.sent = append(s.sent, v.(Envelope))
	return nil
}

func (s *recordSocket) IsOpen() bool { return s.open }

func (s *recordSocket) envelopes() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.sent...)
}

func newTestGateway(t *testing.T) (*Gateway, *session.Registry) {
	t.Helper()
	reg := session.New(session.Config{SweepInterval: time.Hour}, nil)
	t.Cleanup(reg.Close)
	return New(reg, nil), reg
}

func TestNotify_DeliversToSubscribers(t *testing.T) {
	g, reg := newTestGateway(t)
	id := reg.CreateOrGet("10.0.0.1")

	live := &recordSocket{open: true}
	closed := &recordSocket{open: false}
	broken := &recordSocket{open: true, fail: true}
	for _, s := range []session.Socket{live, closed, broken} {
		if err := reg.Subscribe(id, string(EventAutomobile), s); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	car := models.Car{ID: "car-1", DescriptionShort: "compact EV"}
	g.NotifyAutomobile(id, car)

	got := live.envelopes()
	if len(got) != 1 {
		t.Fatalf("live socket got %d envelopes, want 1", len(got))
	}
	if got[0].Event != EventAutomobile {
		t.Fatalf("event=%q, want Automobile", got[0].Event)
	}
	if got[0].Payload.(models.Car).ID != "car-1" {
		t.Fatalf("payload car id=%v", got[0].Payload)
	}
	if len(closed.envelopes()) != 0 {
		t.Fatalf("closed socket should be skipped")
	}
}

func TestNotify_NoSubscribersIsDropped(t *testing.T) {
	g, reg := newTestGateway(t)
	id := reg.CreateOrGet("10.0.0.1")

	// Never-subscribed topic: dropped without error.
	g.NotifySearching(id, true)

	// Unknown session: same.
	g.NotifyNews("unknown", nil)
	_ = id
}

func TestNotify_PerSessionOrderPreserved(t *testing.T) {
	g, reg := newTestGateway(t)
	id := reg.CreateOrGet("10.0.0.1")
	sock := &recordSocket{open: true}
	for _, topic := range []Event{EventSearching, EventAutomobile} {
		if err := reg.Subscribe(id, string(topic), sock); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	g.NotifySearching(id, true)
	g.NotifySearching(id, false)
	g.NotifyAutomobile(id, models.Car{ID: "car-42"})

	got := sock.envelopes()
	if len(got) != 3 {
		t.Fatalf("got %d envelopes, want 3", len(got))
	}
	if got[0].Payload.(SearchingPayload).Searching != true ||
		got[1].Payload.(SearchingPayload).Searching != false {
		t.Fatalf("searching flags out of order: %+v", got[:2])
	}
	if got[2].Event != EventAutomobile {
		t.Fatalf("last event=%q, want Automobile", got[2].Event)
	}
}

// End-to-end over a real websocket: init, subscribe, notify.
func TestNotificationSocket_InitSubscribeNotify(t *testing.T) {
	g, reg := newTestGateway(t)
	id := reg.CreateOrGet("10.0.0.1")

	srv := httptest.NewServer(g)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(controlMessage{Action: "init", SessionID: id}); err != nil {
		t.Fatalf("write init: %v", err)
	}
	var ack initializedAck
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read init ack: %v", err)
	}
	if ack.Type != "initialized" || ack.SessionID != id {
		t.Fatalf("init ack=%+v", ack)
	}

	if err := conn.WriteJSON(controlMessage{Action: "subscribe", Event: string(EventAutomobile)}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var sAck subscribedAck
	if err := conn.ReadJSON(&sAck); err != nil {
		t.Fatalf("read subscribe ack: %v", err)
	}
	if sAck.Type != "subscribed" || sAck.Event != string(EventAutomobile) {
		t.Fatalf("subscribe ack=%+v", sAck)
	}

	// Malformed control frames are ignored, not fatal.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	g.NotifyAutomobile(id, models.Car{ID: "car-1", DescriptionShort: "compact EV"})

	var env struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read notification: %v", err)
	}
	if env.Event != string(EventAutomobile) {
		t.Fatalf("event=%q, want Automobile", env.Event)
	}
	var car models.Car
	if err := json.Unmarshal(env.Payload, &car); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if car.ID != "car-1" {
		t.Fatalf("car id=%q, want car-1", car.ID)
	}
}

func TestNotificationSocket_CloseUnsubscribes(t *testing.T) {
	g, reg := newTestGateway(t)
	id := reg.CreateOrGet("10.0.0.1")

	srv := httptest.NewServer(g)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(controlMessage{Action: "init", SessionID: id}); err != nil {
		t.Fatalf("write init: %v", err)
	}
	var ack initializedAck
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read init ack: %v", err)
	}
	if err := conn.WriteJSON(controlMessage{Action: "subscribe", Event: string(EventNews)}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var sAck subscribedAck
	if err := conn.ReadJSON(&sAck); err != nil {
		t.Fatalf("read subscribe ack: %v", err)
	}

	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		subs, ok := reg.Subscribers(id, string(EventNews))
		if ok && len(subs) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("socket was not unsubscribed after close")
}
