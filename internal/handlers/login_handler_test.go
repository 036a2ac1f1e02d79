package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/oxbowlabs/vantage/internal/models"
)

type stubLoginService struct {
	mu        sync.Mutex
	started   []string
	cancelled []string
	startErr  error
	active    []*models.LoginSession
}

func (s *stubLoginService) StartLogin(_ context.Context, accountID, sessionID string, _ *models.ProxyConfig) (*models.LoginAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.started = append(s.started, accountID)
	if sessionID == "" {
		sessionID = "login_test"
	}
	return &models.LoginAck{Success: true, SessionID: sessionID, Status: models.LoginStatusScanning}, nil
}

func (s *stubLoginService) CancelLogin(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, accountID)
}

func (s *stubLoginService) ActiveSessions() []*models.LoginSession {
	return s.active
}

func TestStartLoginHandler(t *testing.T) {
	stub := &stubLoginService{}
	handler := NewLoginHandler(stub, arbor.NewLogger())

	body := `{"account_id":"acc_42","proxy":{"server":"http://primary:8080","fallback_server":"http://fallback:8080"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/login/start", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.StartLoginHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id"`)
	assert.Contains(t, rec.Body.String(), `"scanning"`)
	assert.Equal(t, []string{"acc_42"}, stub.started)
}

func TestStartLoginHandler_MissingAccountID(t *testing.T) {
	handler := NewLoginHandler(&stubLoginService{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/login/start", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.StartLoginHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartLoginHandler_RejectsGet(t *testing.T) {
	handler := NewLoginHandler(&stubLoginService{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/login/start", nil)
	rec := httptest.NewRecorder()

	handler.StartLoginHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartLoginHandler_UnknownField(t *testing.T) {
	handler := NewLoginHandler(&stubLoginService{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/login/start", strings.NewReader(`{"account_id":"a","bogus":1}`))
	rec := httptest.NewRecorder()

	handler.StartLoginHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelLoginHandler(t *testing.T) {
	stub := &stubLoginService{}
	handler := NewLoginHandler(stub, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/login/cancel", strings.NewReader(`{"account_id":"acc_42"}`))
	rec := httptest.NewRecorder()

	handler.CancelLoginHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"acc_42"}, stub.cancelled)
}

func TestActiveLoginsHandler(t *testing.T) {
	stub := &stubLoginService{active: []*models.LoginSession{
		{AccountID: "acc_1", SessionID: "login_1", Status: models.LoginStatusScanning},
	}}
	handler := NewLoginHandler(stub, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/login/active", nil)
	rec := httptest.NewRecorder()

	handler.ActiveLoginsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), "acc_1")
}
