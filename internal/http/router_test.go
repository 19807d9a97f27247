package http

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	dbutil "github.com/giftgate/giftbot/internal/db"
	"github.com/giftgate/giftbot/internal/http/api/admin"
	"github.com/giftgate/giftbot/internal/ingest"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (s *countingSink) Enqueue(ingest.Event) {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
}

func openRouterDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := dbutil.Open(filepath.Join(t.TempDir(), "router.sqlite3"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	return conn
}

func TestHealthzReportsMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewRouter(Routes{DB: openRouterDB(t)})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"mode":"polling"`) {
		t.Fatalf("unexpected healthz: %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookRouteMountedInWebhookMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &countingSink{}
	engine := NewRouter(Routes{
		DB:          openRouterDB(t),
		WebhookPath: "/tg/webhook",
		Sink:        sink,
	})

	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":3,"first_name":"A"},"chat":{"id":3,"type":"private"},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/tg/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.n != 1 {
		t.Fatalf("expected one enqueued event, got %d", sink.n)
	}
}

func TestAdminAPIHiddenWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewRouter(Routes{DB: openRouterDB(t), Admin: admin.Deps{}})

	req := httptest.NewRequest(http.MethodGet, "/v0/admin/tokens/count", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without admin secret, got %d", w.Code)
	}
}
