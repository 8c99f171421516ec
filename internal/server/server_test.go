package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	authdomain "github.com/batipilot/batipilot/internal/auth/domain"
	authservice "github.com/batipilot/batipilot/internal/auth/service"
	"github.com/batipilot/batipilot/internal/auth/token"
	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/config"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
	tiersservice "github.com/batipilot/batipilot/internal/tiers/service"
	"github.com/batipilot/batipilot/pkg/db"
)

type testServer struct {
	srv       *Server
	authToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&authdomain.User{},
		&tiersdomain.Tiers{},
		&tiersdomain.Address{},
		&tiersdomain.Contact{},
		&tiersdomain.Activity{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{
		AuthJWTSecret:   "test-secret",
		AuthTokenTTLHrs: 24,
	}

	tokens := token.NewManager(cfg, clk)
	authSvc := authservice.New(authservice.Params{
		DB: dbConn, Log: zap.NewNop(), GenID: node, Clock: clk, Tokens: tokens,
	})
	tiersSvc := tiersservice.New(tiersservice.Params{
		DB: dbConn, Log: zap.NewNop(), GenID: node, Clock: clk,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:      engine,
		Cfg:      cfg,
		DB:       dbConn,
		Tokens:   tokens,
		AuthSvc:  authSvc,
		TiersSvc: tiersSvc,
	})

	admin, err := authSvc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "admin@example.com",
		Password: "motdepasse",
		FullName: "Admin",
		Role:     authdomain.RoleAdmin,
	})
	require.NoError(t, err)
	signed, err := tokens.Issue(admin.ID, string(admin.Role))
	require.NoError(t, err)

	return &testServer{srv: srv, authToken: signed}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ts.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+ts.authToken)
	}

	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestAPIRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tiers", nil)
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tiers", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "admin@example.com",
		"password": "motdepasse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data authdomain.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Token)
	assert.Equal(t, "admin@example.com", resp.Data.User.Email)

	rec = ts.do(t, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "admin@example.com",
		"password": "faux",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTiersLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/tiers", gin.H{
		"kind":  "company",
		"name":  "Batim SARL",
		"flags": []string{"client"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data tiersdomain.Tiers `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.ID.String()

	rec = ts.do(t, http.MethodGet, "/api/tiers/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/tiers/"+id+"/archive", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Archiving twice contradicts current state.
	rec = ts.do(t, http.MethodPost, "/api/tiers/"+id+"/archive", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/tiers/"+id+"/restore", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/tiers/424242", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/tiers", gin.H{"name": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error.Type)
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/users", gin.H{
		"email":    "chef@example.com",
		"password": "motdepasse",
		"role":     "manager",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data authdomain.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Re-login as the manager and try again.
	rec = ts.do(t, http.MethodPost, "/auth/login", gin.H{
		"email":    "chef@example.com",
		"password": "motdepasse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Data authdomain.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	manager := &testServer{srv: ts.srv, authToken: login.Data.Token}
	rec = manager.do(t, http.MethodPost, "/auth/users", gin.H{
		"email":    "autre@example.com",
		"password": "motdepasse",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
