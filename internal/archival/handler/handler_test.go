package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"archivist/internal/archival/handler"
	"archivist/internal/archival/models"
	"archivist/internal/archival/service"
	"archivist/internal/archival/store/account"
	"archivist/internal/archival/store/measurement"
	id "archivist/pkg/domain"
	"archivist/pkg/platform/audit"
	auditmemory "archivist/pkg/platform/audit/store/memory"
	adminmw "archivist/pkg/platform/middleware/admin"
	operatormw "archivist/pkg/platform/middleware/operator"
	"archivist/pkg/platform/middleware/requestid"
	"archivist/pkg/platform/middleware/requesttime"
)

const adminToken = "secret-token"

type testEnv struct {
	router   chi.Router
	accounts *account.InMemory
	recorder *audit.Recorder
	operator id.OperatorID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := account.NewInMemory()
	measurements := measurement.NewInMemory()
	recorder := audit.NewRecorder(auditmemory.NewInMemoryStore(), logger, 64)
	svc := service.New(accounts, measurements, recorder, service.WithLogger(logger))

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)
	router.Use(adminmw.RequireAdminToken(adminToken, logger))
	router.Use(operatormw.Middleware(logger))
	handler.New(svc, recorder, logger).Register(router)

	return &testEnv{
		router:   router,
		accounts: accounts,
		recorder: recorder,
		operator: id.OperatorID(uuid.New()),
	}
}

func (e *testEnv) createAccount(t *testing.T) id.AccountID {
	t.Helper()
	accountID := id.AccountID(uuid.New())
	now := time.Now().UTC()
	require.NoError(t, e.accounts.Create(context.Background(), &models.Account{
		ID: accountID, Role: models.RolePatient, CreatedAt: now, UpdatedAt: now,
	}))
	return accountID
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	req.Header.Set(operatormw.Header, uuid.UUID(e.operator).String())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminTokenRequired(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/accounts/archival-stats", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperatorHeaderRequired(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/accounts/archival-stats", nil)
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestArchiveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.createAccount(t)

	rec := env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": "Cured", "comment": "  follow-up done  "})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Account struct {
			Archived         bool       `json:"archived"`
			ScheduledPurgeAt *time.Time `json:"scheduled_purge_at"`
		} `json:"account"`
		ScheduledPurgeAt *time.Time `json:"scheduled_purge_at"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Account.Archived)
	require.NotNil(t, resp.ScheduledPurgeAt)

	// Second archive of the same subject conflicts.
	rec = env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": "cured"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestArchiveValidation(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.createAccount(t)

	rec := env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": "not_a_reason"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/accounts/not-a-uuid/archive",
		map[string]string{"reason": "cured"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnarchiveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.createAccount(t)

	rec := env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/unarchive",
		map[string]string{"reason": "premature"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": "inactive"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/unarchive",
		map[string]string{"reason": "patient returned"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Account struct {
			Archived bool `json:"archived"`
		} `json:"account"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Account.Archived)
}

func TestDeleteEndpointEnforcesRetention(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.createAccount(t)

	rec := env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": "deceased"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Freshly archived: retention window still open.
	rec = env.do(t, http.MethodDelete, "/admin/accounts/"+accountID.String(), nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	require.Equal(t, "conflict", errResp.Error)

	rec = env.do(t, http.MethodDelete, "/admin/accounts/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulkArchiveEndpoint(t *testing.T) {
	env := newTestEnv(t)
	first := env.createAccount(t)
	second := env.createAccount(t)

	// Pre-archive second so the batch is a partial success.
	rec := env.do(t, http.MethodPost, "/admin/accounts/"+second.String()+"/archive",
		map[string]string{"reason": "inactive"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/accounts/bulk-archive", map[string]any{
		"subject_ids": []string{first.String(), second.String()},
		"reason":      "regulatory",
	})
	require.Equal(t, http.StatusMultiStatus, rec.Code)

	var resp struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Items     []struct {
			SubjectID string `json:"subject_id"`
			Archived  bool   `json:"archived"`
			Failure   string `json:"failure"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 1, resp.Succeeded)
	require.Equal(t, 1, resp.Failed)
	require.Equal(t, first.String(), resp.Items[0].SubjectID)
	require.True(t, resp.Items[0].Archived)
	require.Equal(t, "already_archived", resp.Items[1].Failure)
}

func TestBulkArchiveRejectsMalformedIDs(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/admin/accounts/bulk-archive", map[string]any{
		"subject_ids": []string{"not-a-uuid"},
		"reason":      "cured",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatisticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.createAccount(t)
	rec := env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": "cured"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/accounts/archival-stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalArchived int            `json:"total_archived"`
		ByReason      map[string]int `json:"by_reason"`
		AuditEntries  int            `json:"audit_entries"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.Equal(t, 1, stats.TotalArchived)
	require.Equal(t, 1, stats.ByReason["cured"])
	require.Equal(t, 1, stats.AuditEntries)
}

func TestAuditEndpoints(t *testing.T) {
	env := newTestEnv(t)
	accountID := env.createAccount(t)

	rec := env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/archive",
		map[string]string{"reason": "transferred"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/admin/accounts/"+accountID.String()+"/unarchive",
		map[string]string{"reason": "came back"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/accounts/"+accountID.String()+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var trail []struct {
		Action string `json:"action"`
		Actor  string `json:"actor"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trail))
	require.Len(t, trail, 2)
	require.Equal(t, "account_archived", trail[0].Action)
	require.Equal(t, "account_unarchived", trail[1].Action)

	rec = env.do(t, http.MethodGet, "/admin/operators/"+uuid.UUID(env.operator).String()+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byActor []struct {
		Actor string `json:"actor"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&byActor))
	require.Len(t, byActor, 2)
}
