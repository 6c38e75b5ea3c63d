package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/LevelUp/pkg/errors"
	"github.com/utafrali/LevelUp/pkg/health"
	"github.com/utafrali/LevelUp/services/mission/internal/completion"
)

// --- Mock Completer ---

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) CompleteRegular(ctx context.Context, executionID, userID, note string) (*completion.ExecutionResponse, error) {
	args := m.Called(ctx, executionID, userID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*completion.ExecutionResponse), args.Error(1)
}

func (m *mockCompleter) CompletePinned(ctx context.Context, instanceID, userID, note string) (*completion.PinnedInstanceResponse, error) {
	args := m.Called(ctx, instanceID, userID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*completion.PinnedInstanceResponse), args.Error(1)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRouter(svc *mockCompleter) http.Handler {
	return NewRouter(svc, health.NewHandler(), testLogger(), []string{"127.0.0.0/8"}, 5*time.Second)
}

func doRequest(h http.Handler, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  map[string]any `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&env))
	return env
}

// ============================================================================
// CompleteExecution Tests
// ============================================================================

func TestCompleteExecution_Success(t *testing.T) {
	svc := new(mockCompleter)
	svc.On("CompleteRegular", mock.Anything, "exec-1", "user-1", "ran 5k").
		Return(&completion.ExecutionResponse{ExecutionID: "exec-1", Status: "COMPLETED", ExpEarned: 30, TotalExp: 130, Level: 2, LeveledUp: true}, nil)

	rec := doRequest(setupRouter(svc), "/api/v1/executions/exec-1/complete", "user-1", `{"note":"ran 5k"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "exec-1", env.Data["execution_id"])
	assert.Equal(t, float64(30), env.Data["exp_earned"])
	assert.Equal(t, true, env.Data["leveled_up"])
	svc.AssertExpectations(t)
}

func TestCompleteExecution_EmptyBody(t *testing.T) {
	svc := new(mockCompleter)
	svc.On("CompleteRegular", mock.Anything, "exec-1", "user-1", "").
		Return(&completion.ExecutionResponse{ExecutionID: "exec-1"}, nil)

	rec := doRequest(setupRouter(svc), "/api/v1/executions/exec-1/complete", "user-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCompleteExecution_MissingUserID(t *testing.T) {
	svc := new(mockCompleter)

	rec := doRequest(setupRouter(svc), "/api/v1/executions/exec-1/complete", "", `{"note":"x"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	svc.AssertNotCalled(t, "CompleteRegular", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteExecution_NoteTooLong(t *testing.T) {
	svc := new(mockCompleter)
	body, _ := json.Marshal(CompleteRequest{Note: strings.Repeat("n", 501)})

	rec := doRequest(setupRouter(svc), "/api/v1/executions/exec-1/complete", "user-1", string(body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "Note")
	svc.AssertNotCalled(t, "CompleteRegular", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteExecution_MalformedBody(t *testing.T) {
	svc := new(mockCompleter)

	rec := doRequest(setupRouter(svc), "/api/v1/executions/exec-1/complete", "user-1", `{"note":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
}

func TestCompleteExecution_WrongContentType(t *testing.T) {
	svc := new(mockCompleter)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions/exec-1/complete", strings.NewReader("note=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()

	setupRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCompleteExecution_SagaFailure(t *testing.T) {
	svc := new(mockCompleter)
	svc.On("CompleteRegular", mock.Anything, "exec-1", "user-1", "").
		Return(nil, apperrors.Unprocessable(completion.ErrCodeCompletionFailed, "could not grant experience"))

	rec := doRequest(setupRouter(svc), "/api/v1/executions/exec-1/complete", "user-1", "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, completion.ErrCodeCompletionFailed, env.Error.Code)
	assert.Equal(t, "could not grant experience", env.Error.Message)
}

func TestCompleteExecution_AlreadyInProgress(t *testing.T) {
	svc := new(mockCompleter)
	svc.On("CompleteRegular", mock.Anything, "exec-1", "user-1", "").
		Return(nil, apperrors.Conflict("a completion for this item is already in progress"))

	rec := doRequest(setupRouter(svc), "/api/v1/executions/exec-1/complete", "user-1", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ============================================================================
// CompletePinnedInstance Tests
// ============================================================================

func TestCompletePinnedInstance_Success(t *testing.T) {
	svc := new(mockCompleter)
	next := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc.On("CompletePinned", mock.Anything, "inst-1", "user-1", "").
		Return(&completion.PinnedInstanceResponse{InstanceID: "inst-1", Status: "COMPLETED", NextInstanceID: "inst-2", NextInstanceDate: &next}, nil)

	rec := doRequest(setupRouter(svc), "/api/v1/pinned-instances/inst-1/complete", "user-1", `{}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "inst-1", env.Data["instance_id"])
	assert.Equal(t, "inst-2", env.Data["next_instance_id"])
	svc.AssertExpectations(t)
}

func TestCompletePinnedInstance_InvalidInputFromService(t *testing.T) {
	svc := new(mockCompleter)
	svc.On("CompletePinned", mock.Anything, "inst-1", "user-1", "").
		Return(nil, apperrors.InvalidInput("id is required"))

	rec := doRequest(setupRouter(svc), "/api/v1/pinned-instances/inst-1/complete", "user-1", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Router Tests
// ============================================================================

func TestRouter_HealthLive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	setupRouter(new(mockCompleter)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec := doRequest(setupRouter(new(mockCompleter)), "/api/v1/executions/exec-1/start", "user-1", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
