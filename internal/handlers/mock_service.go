package handlers

import (
	"context"
	"net/http"
	"time"

	"stovelink"
	"stovelink/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockStove struct {
	err error

	incTempCalls int
	decTempCalls int
	incPowCalls  int
	decPowCalls  int
	setPowCalls  int
	toggleCalls  int
	setModeCalls int

	lastDelta float64
	lastOn    bool
	lastMode  int
}

func (m *mockStove) IncreaseTemperature(ctx context.Context, delta float64) error {
	m.incTempCalls++
	m.lastDelta = delta
	return m.err
}
func (m *mockStove) DecreaseTemperature(ctx context.Context, delta float64) error {
	m.decTempCalls++
	m.lastDelta = delta
	return m.err
}
func (m *mockStove) IncreasePower(ctx context.Context) error {
	m.incPowCalls++
	return m.err
}
func (m *mockStove) DecreasePower(ctx context.Context) error {
	m.decPowCalls++
	return m.err
}
func (m *mockStove) SetPower(ctx context.Context, on bool) error {
	m.setPowCalls++
	m.lastOn = on
	return m.err
}
func (m *mockStove) ToggleMode(ctx context.Context) error {
	m.toggleCalls++
	return m.err
}
func (m *mockStove) SetOperativeMode(ctx context.Context, mode int) error {
	m.setModeCalls++
	m.lastMode = mode
	return m.err
}

type mockMonitoring struct {
	view service.StoveStateView
	err  error
}

func (m *mockMonitoring) GetState(ctx context.Context) (service.StoveStateView, error) {
	return m.view, m.err
}

type mockEventLog struct {
	resp     []stovelink.StoveEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]stovelink.StoveEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
