package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purescan-service/config"
	"purescan-service/database"
	"purescan-service/history"
	"purescan-service/llm"
	"purescan-service/models"
	"purescan-service/service"
	"purescan-service/stubllm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	handlers *Handlers
	mock     sqlmock.Sqlmock
	store    *history.Store
	router   *gin.Engine
}

// newFixture wires the handlers against a sqlmock-backed database and a
// deterministic simulation client. Auth is replaced with a middleware
// that injects the given user id.
func newFixture(t *testing.T, client llm.Client, userID string) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		FreeScans:             3,
		DemoFallback:          true,
		SimulatedPaymentDelay: 0,
	}

	wrapped := database.NewFromDB(db)
	auth := database.NewAuthService(wrapped, "test-secret", time.Hour)
	store := history.NewStore()
	scanner := service.NewScanner(client, stubllm.NewClient(), store, nil, time.Second)
	h := NewHandlers(cfg, scanner, auth, wrapped, store)

	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) { c.Set("user_id", userID) })
	}
	api := router.Group("/api/v1")
	{
		api.POST("/scan", h.Scan)
		api.DELETE("/scan", h.AbandonScan)
		api.GET("/history", h.ListHistory)
		api.GET("/history/:id", h.GetHistoryItem)
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.GET("/profile", h.GetProfile)
		api.PUT("/profile", h.UpdateProfile)
		api.POST("/subscription/upgrade", h.Upgrade)
	}
	router.GET("/health", h.HealthCheck)

	return &fixture{handlers: h, mock: mock, store: store, router: router}
}

func (f *fixture) expectProfile(userID string, user models.User) {
	profile, _ := json.Marshal(user)
	f.mock.ExpectQuery("SELECT profile FROM users WHERE storage_key = ").
		WithArgs("purescan_user:" + userID).
		WillReturnRows(sqlmock.NewRows([]string{"profile"}).AddRow(profile))
}

func freeUser(scansLeft int) models.User {
	return models.User{
		ID:        "user-1",
		Email:     "user@purescan.ai",
		Name:      "Test User",
		Plan:      models.PlanFree,
		ScansLeft: scansLeft,
		Allergies: []string{},
	}
}

func ingredientsForm(t *testing.T, ingredients string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("ingredients", ingredients))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type erroringClient struct{}

func (erroringClient) AnalyzeLabel(ctx context.Context, req llm.Request) (string, error) {
	return "", errors.New("upstream unavailable")
}

func (erroringClient) SourceName() string { return "Gemini" }

func TestScanReturnsSimulationResultWhenRemoteFails(t *testing.T) {
	f := newFixture(t, erroringClient{}, "user-1")
	f.expectProfile("user-1", freeUser(3))
	f.mock.ExpectExec("UPDATE users SET profile = ").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, contentType := ingredientsForm(t, "sugar, caffeine, taurine")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result    models.ScanResult `json:"result"`
		ScansLeft int               `json:"scansLeft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Energy Drink (Demo)", resp.Result.ProductName)
	assert.Equal(t, "2.1", resp.Result.Score)
	assert.Equal(t, models.StatusDanger, resp.Result.Status)
	assert.Equal(t, 2, resp.ScansLeft)

	assert.Len(t, f.store.List("user-1"), 1)
}

func TestScanRequiresAnInput(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	f.expectProfile("user-1", freeUser(3))

	body, contentType := func() (*bytes.Buffer, string) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		w.Close()
		return &buf, w.FormDataContentType()
	}()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanAcceptsJSONIngredients(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	f.expectProfile("user-1", freeUser(3))
	f.mock.ExpectExec("UPDATE users SET profile = ").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(`{"ingredients": "water, sugar"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestScanRejectedWhenFreeQuotaExhausted(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	f.expectProfile("user-1", freeUser(0))

	body, contentType := ingredientsForm(t, "oats")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Empty(t, f.store.List("user-1"))
}

func TestScanAcceptsImageUpload(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	user := freeUser(3)
	user.Plan = models.PlanPro
	user.ScansLeft = -1
	f.expectProfile("user-1", user)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "label.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not-really-a-jpeg"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	// Paid plan: no quota decrement, so no UPDATE is expected.
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAbandonScanIsIdempotent(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/scan", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHistoryListAndGet(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	item := f.store.Append("user-1", models.ScanResult{
		ID:          "scan-1",
		ProductName: "Granola",
		Status:      models.StatusWarning,
		Score:       "6.5",
		Nutrients:   []models.Nutrient{},
		Additives:   []models.Additive{},
		Pros:        []string{},
		Cons:        []string{},
	})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.HistoryItem `json:"items"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, item.ID, list.Items[0].ID)

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/history/scan-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/history/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterCreatesAccountWithToken(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "")
	f.mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := `{"name": "New User", "email": "new@purescan.ai", "password": "longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User)
	assert.Equal(t, models.PlanFree, resp.User.Plan)
	assert.Equal(t, 3, resp.User.ScansLeft)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "")

	body := `{"name": "New User", "email": "new@purescan.ai", "password": "short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "")
	f.mock.ExpectQuery("SELECT profile, password_hash FROM users WHERE email = ").
		WithArgs("ghost@purescan.ai").
		WillReturnRows(sqlmock.NewRows([]string{"profile", "password_hash"}))

	body := `{"email": "ghost@purescan.ai", "password": "whatever123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfileNotFoundMeansLoggedOut(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	f.mock.ExpectQuery("SELECT profile FROM users WHERE storage_key = ").
		WithArgs("purescan_user:user-1").
		WillReturnRows(sqlmock.NewRows([]string{"profile"}))

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfileReplacesEditableFields(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	f.expectProfile("user-1", freeUser(3))
	f.mock.ExpectExec("UPDATE users SET profile = ").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"name": "Renamed", "allergies": ["milk"], "settings": {"notifications": false, "darkMode": true}}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "Renamed", user.Name)
	assert.Equal(t, []string{"milk"}, user.Allergies)
	assert.False(t, user.Settings.Notifications)
	// Server-owned fields survive the update untouched.
	assert.Equal(t, models.PlanFree, user.Plan)
	assert.Equal(t, 3, user.ScansLeft)
}

func TestUpgradeSimulatesSuccessWhenProviderUnavailable(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")
	f.expectProfile("user-1", freeUser(1))
	f.mock.ExpectExec("UPDATE users SET profile = ").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"plan": "PRO"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/upgrade", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success   bool        `json:"success"`
		Simulated bool        `json:"simulated"`
		User      models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Simulated, "no provider configured, upgrade must be simulated")
	assert.Equal(t, models.PlanPro, resp.User.Plan)
	assert.Equal(t, -1, resp.User.ScansLeft)
}

func TestUpgradeUsesPaymentProviderWhenConfigured(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer provider.Close()

	f := newFixture(t, stubllm.NewClient(), "user-1")
	f.handlers.cfg.PaymentURL = provider.URL
	f.expectProfile("user-1", freeUser(1))
	f.mock.ExpectExec("UPDATE users SET profile = ").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"plan": "ULTRA"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/upgrade", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Simulated bool `json:"simulated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Simulated)
}

func TestUpgradeRejectsInvalidPlan(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "user-1")

	for _, body := range []string{`{"plan": "FREE"}`, `{"plan": "PLATINUM"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/upgrade", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, stubllm.NewClient(), "")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
