package ingest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

type sliceSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *sliceSink) Enqueue(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sliceSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func newWebhookEngine(sink Enqueuer, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/tg/webhook", WebhookHandler(sink, secret))
	return engine
}

func postUpdate(engine *gin.Engine, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/tg/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestWebhookEnqueuesCallback(t *testing.T) {
	sink := &sliceSink{}
	engine := newWebhookEngine(sink, "s3cret")

	body := `{"update_id":5,"callback_query":{"id":"cb","from":{"id":11,"first_name":"A","username":"a"},"data":"claim:gift","message":{"message_id":20,"chat":{"id":11,"type":"private"}}}}`
	if w := postUpdate(engine, body, "s3cret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != KindButtonPress || ev.UserID != 11 || ev.CallbackID != "cb" || ev.MessageID != 20 || ev.Payload != "claim:gift" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWebhookRejectsWrongSecret(t *testing.T) {
	sink := &sliceSink{}
	engine := newWebhookEngine(sink, "s3cret")

	if w := postUpdate(engine, `{"update_id":1}`, "nope"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(sink.snapshot()) != 0 {
		t.Fatalf("rejected request must not enqueue")
	}
}

func TestWebhookAcknowledgesUndecodableBody(t *testing.T) {
	sink := &sliceSink{}
	engine := newWebhookEngine(sink, "")

	if w := postUpdate(engine, `{not json`, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for bad body, got %d", w.Code)
	}
	if w := postUpdate(engine, `{"update_id":2,"edited_message":{}}`, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored update, got %d", w.Code)
	}
	if len(sink.snapshot()) != 0 {
		t.Fatalf("expected nothing enqueued")
	}
}
