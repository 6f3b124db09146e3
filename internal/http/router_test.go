package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/carlog-backend/internal/config"
	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/http/handlers"
	"github.com/tbourn/carlog-backend/internal/http/middleware"
	"github.com/tbourn/carlog-backend/internal/repo"
	"github.com/tbourn/carlog-backend/internal/scheduler"
	"github.com/tbourn/carlog-backend/internal/services"
)

const (
	testSecret = "router-secret"
	ownerID    = "0b9d7c1e-6a39-4c55-9f0e-2f8a7e0b1c01"
	vehicleID  = "6f1a2b3c-4d5e-4f60-8a7b-9c0d1e2f3a4b"
)

type fakeProvider struct{ calls int }

func (p *fakeProvider) Compute(ctx context.Context, v domain.Vehicle, history []domain.MaintenanceRecord) (services.Computation, error) {
	p.calls++
	return services.Computation{Text: "Change the oil on your " + v.DisplayName(), Prompt: "prompt", RawResponse: "{}", Model: "test"}, nil
}

type nopSMS struct{}

func (nopSMS) Send(ctx context.Context, phone, text string) (string, error) { return "SM1", nil }

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		JWTSecret:   testSecret,
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

// newTestServer wires the real store, services and scheduler over sqlite.
func newTestServer(t *testing.T, name string, cfg config.Config) (*gin.Engine, *fakeProvider, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t, name)
	store := repo.NewStore(db)

	phone := "+15551234567"
	mileage := 42000
	if err := db.Create(&domain.User{
		ID: ownerID, Email: "owner@example.com", PhoneNumber: &phone,
		SMSNotificationsEnabled: true, SMSNotificationFrequency: domain.SMSWeekly,
		MaintenanceNotificationFrequency: domain.MaintenanceQuarterly, AccountActive: true,
	}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := db.Create(&domain.Vehicle{
		ID: vehicleID, OwnerID: ownerID, Brand: "Honda", Model: "Civic", Year: 2019, CurrentMileage: &mileage,
	}).Error; err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}

	provider := &fakeProvider{}
	cache := services.NewRecommendationCache(store, store)
	recs := services.NewRecommendationService(store, cache, provider)
	batch := services.NewReminderService(store, store, services.NewDispatcher(store, nopSMS{}, nil))
	sched, err := scheduler.New(batch, scheduler.Options{Hour: 9, Location: time.UTC})
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, handlers.New(sched, store, recs, store), cfg)
	return r, provider, db
}

func token(t *testing.T, sub string, admin bool) string {
	t.Helper()
	tok, err := middleware.IssueToken(testSecret, sub, admin, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func call(r http.Handler, method, path, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_OperationalEndpoints(t *testing.T) {
	r, _, _ := newTestServer(t, "router_ops", testConfig())

	w := call(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("middleware headers missing: %v", w.Header())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		// No Origin header: CORS stays silent.
		t.Fatalf("unexpected ACAO %q", got)
	}

	if w := call(r, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/health", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_Recommendations(t *testing.T) {
	r, provider, db := newTestServer(t, "router_recs", testConfig())
	path := "/api/v1/vehicles/" + vehicleID + "/recommendations"

	if w := call(r, http.MethodGet, path, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if w := call(r, http.MethodGet, path, token(t, "someone-else", false)); w.Code != http.StatusNotFound {
		t.Fatalf("foreign vehicle: %d", w.Code)
	}

	tok := token(t, ownerID, false)
	var body handlers.RecommendationResponse
	for i, wantCached := range []bool{false, true} {
		w := call(r, http.MethodGet, path, tok)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: %d %s", i, w.Code, w.Body.String())
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Cached != wantCached || body.Recommendations != "Change the oil on your 2019 Honda Civic" {
			t.Fatalf("call %d: %+v", i, body)
		}
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}

	var logs int64
	db.Model(&domain.RecommendationLog{}).Count(&logs)
	if logs != 1 {
		t.Fatalf("audit rows = %d, want 1", logs)
	}
}

func TestRegisterRoutes_Admin(t *testing.T) {
	r, _, db := newTestServer(t, "router_admin", testConfig())

	if w := call(r, http.MethodPost, "/api/v1/admin/trigger-reminders", token(t, ownerID, false)); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin trigger: %d", w.Code)
	}

	admin := token(t, "ops", true)
	w := call(r, http.MethodPost, "/api/v1/admin/trigger-reminders", admin)
	if w.Code != http.StatusOK {
		t.Fatalf("trigger: %d %s", w.Code, w.Body.String())
	}
	var res handlers.TriggerRemindersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.SMSRemindersSent != 1 || res.TriggeredBy != "ops" {
		t.Fatalf("trigger body: %+v", res)
	}
	var u domain.User
	if err := db.First(&u, "id = ?", ownerID).Error; err != nil || u.LastUpdateRequest == nil {
		t.Fatalf("last_update_request not stamped: %+v %v", u, err)
	}

	w = call(r, http.MethodGet, "/api/v1/admin/scheduler", admin)
	var st scheduler.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || st.LastRun == nil || st.LastRun.Trigger != scheduler.TriggerManual {
		t.Fatalf("scheduler status: %d %+v", w.Code, st)
	}

	if w := call(r, http.MethodGet, "/api/v1/admin/ai-logs", admin); w.Code != http.StatusOK || w.Header().Get("ETag") == "" {
		t.Fatalf("ai-logs: %d %v", w.Code, w.Header())
	}
}

func TestRegisterRoutes_NoSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = ""
	r, _, _ := newTestServer(t, "router_nosecret", cfg)
	if w := call(r, http.MethodGet, "/api/v1/admin/scheduler", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503 without secret, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _, _ := newTestServer(t, "router_cors", cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _, _ := newTestServer(t, "router_swagger", cfg)
	if w := call(r, http.MethodGet, "/swagger/doc.json", ""); w.Code != http.StatusOK {
		t.Fatalf("swagger doc: %d", w.Code)
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := call(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s = %d %q", path, w.Code, w.Body.String())
		}
	}
}
