package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/recurring-service/internal/config"
	"github.com/ledgerkeep/recurring-service/internal/middleware"
	"github.com/ledgerkeep/recurring-service/internal/models"
	"github.com/ledgerkeep/recurring-service/internal/monitor"
	"github.com/ledgerkeep/recurring-service/internal/scheduler"
	"github.com/ledgerkeep/recurring-service/internal/service"
	"github.com/ledgerkeep/recurring-service/internal/system"
)

type memoryStore struct {
	obligations []models.RecurringObligation
	users       map[string]*models.User
	nextID      int64
}

func (m *memoryStore) FindActiveObligationsDueOrExpired(_ context.Context, userID int64, now time.Time) ([]models.RecurringObligation, error) {
	var out []models.RecurringObligation
	for _, ob := range m.obligations {
		if ob.IsActive && (userID == 0 || ob.UserID == userID) && !ob.NextDueDate.After(now) {
			out = append(out, ob)
		}
	}
	return out, nil
}

func (m *memoryStore) FindActiveObligations(_ context.Context, userID int64) ([]models.RecurringObligation, error) {
	var out []models.RecurringObligation
	for _, ob := range m.obligations {
		if ob.IsActive && ob.UserID == userID {
			out = append(out, ob)
		}
	}
	return out, nil
}

func (m *memoryStore) AdvanceObligation(_ context.Context, id int64, _, nextDue time.Time) (bool, error) {
	for i := range m.obligations {
		if m.obligations[i].ID == id {
			m.obligations[i].NextDueDate = nextDue
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) DeactivateObligation(_ context.Context, id int64) (bool, error) {
	for i := range m.obligations {
		if m.obligations[i].ID == id && m.obligations[i].IsActive {
			m.obligations[i].IsActive = false
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CreateLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	m.nextID++
	entry.ID = m.nextID
	return nil
}

func (m *memoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	m.users[user.Email] = user
	return nil
}

func (m *memoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

type testEnv struct {
	router *mux.Router
	store  *memoryStore
	sched  *scheduler.Scheduler
	sys    *system.System
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{JWTSecret: "test-secret"}
	store := &memoryStore{users: map[string]*models.User{}}

	processor := service.NewProcessor(store, monitor.New(log), log)
	svc := service.NewService(store, log, cfg)
	sched := scheduler.New(log, nil)
	sys := system.New(system.Config{
		EnableCronJobs:  true,
		CronJobSchedule: "0 2 * * *",
	}, sched, processor, nil, log)
	require.NoError(t, sys.Initialize())
	t.Cleanup(sys.Shutdown)

	h := NewHandler(svc, processor, sched, sys)
	r := mux.NewRouter()
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/recurring/schedule", h.UpcomingSchedule).Methods("GET")
	authRouter.HandleFunc("/recurring/process", h.ProcessRecurring).Methods("POST")
	authRouter.HandleFunc("/recurring/validate", h.ValidateRecurring).Methods("POST")
	authRouter.HandleFunc("/scheduler/stats", h.SchedulerStats).Methods("GET")
	authRouter.HandleFunc("/scheduler/jobs/{name}", h.JobStatus).Methods("GET")
	authRouter.HandleFunc("/scheduler/jobs/{name}", h.UpdateJob).Methods("PUT")

	return &testEnv{router: r, store: store, sched: sched, sys: sys}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// registerAndLogin creates a user through the API and returns a token
func (e *testEnv) registerAndLogin(t *testing.T) string {
	t.Helper()
	rec := e.do(t, "POST", "/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, "POST", "/login", "", map[string]string{
		"email": "alice@example.com", "password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/recurring/schedule", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "GET", "/recurring/schedule", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t)

	rec := env.do(t, "POST", "/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidateRecurringEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t)

	rec := env.do(t, "POST", "/recurring/validate", token, map[string]any{
		"kind":      "invalid",
		"amount":    -100,
		"frequency": "invalid",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result struct {
		IsValid bool     `json:"is_valid"`
		Errors  []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 4) // kind, amount, frequency, category
}

func TestProcessAndScheduleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t)
	userID := env.store.users["alice@example.com"].ID
	env.store.obligations = append(env.store.obligations, models.RecurringObligation{
		ID:          100,
		UserID:      userID,
		Kind:        models.KindIncome,
		Amount:      decimal.NewFromInt(1000),
		Description: "Salary",
		Frequency:   models.FrequencyMonthly,
		CategoryID:  1,
		NextDueDate: time.Now().AddDate(0, 0, -1),
		IsActive:    true,
	})

	rec := env.do(t, "GET", "/recurring/schedule?days=30", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var upcoming []models.UpcomingObligation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upcoming))
	require.Len(t, upcoming, 1)
	assert.True(t, upcoming[0].IsOverdue)
	assert.Equal(t, 1, upcoming[0].DaysPastDue)

	rec = env.do(t, "POST", "/recurring/process", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.ProcessingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, result.CreatedRecords, 1)
	assert.Equal(t, models.KindIncome, result.CreatedRecords[0].Kind)
}

func TestSchedulerEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin(t)

	rec := env.do(t, "GET", "/scheduler/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_running":true`)

	rec = env.do(t, "GET", "/scheduler/jobs/"+system.RecurringPaymentsJob, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/scheduler/jobs/nope", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	enabled := false
	newSpec := "*/10 * * * *"
	rec = env.do(t, "PUT", "/scheduler/jobs/"+system.RecurringPaymentsJob, token, map[string]any{
		"enabled": enabled, "schedule": newSpec,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var job scheduler.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.False(t, job.Enabled)
	assert.Equal(t, newSpec, job.Schedule)

	rec = env.do(t, "PUT", "/scheduler/jobs/"+system.RecurringPaymentsJob, token, map[string]any{
		"schedule": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
