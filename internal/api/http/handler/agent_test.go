package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/screenfleet/screenfleet/internal/action"
	"github.com/screenfleet/screenfleet/internal/api/http/dto"
	"github.com/screenfleet/screenfleet/internal/api/http/middleware"
	"github.com/screenfleet/screenfleet/internal/audit"
	"github.com/screenfleet/screenfleet/internal/ratelimit"
	"github.com/screenfleet/screenfleet/internal/screen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	screens []screen.Screen
	img     *image.RGBA
}

func (s *stubSource) Screens() []screen.Screen {
	return s.screens
}

func (s *stubSource) Capture(idx screen.Index) (*image.RGBA, screen.Screen, error) {
	if idx == screen.CompositeIndex {
		return s.img, screen.Screen{Index: screen.CompositeIndex, Name: "All Screens"}, nil
	}
	if int(idx) < 0 || int(idx) >= len(s.screens) {
		return nil, screen.Screen{}, fmt.Errorf("%w: %d", screen.ErrOutOfRange, idx)
	}
	return s.img, s.screens[idx], nil
}

// MockDriver is a mock implementation of action.Driver
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) MoveMouse(x, y int) error {
	args := m.Called(x, y)
	return args.Error(0)
}

func (m *MockDriver) Click(x, y int) error {
	args := m.Called(x, y)
	return args.Error(0)
}

func (m *MockDriver) TypeText(text string) error {
	args := m.Called(text)
	return args.Error(0)
}

func (m *MockDriver) Scroll(dy int) error {
	args := m.Called(dy)
	return args.Error(0)
}

type agentFixture struct {
	engine    *gin.Engine
	driver    *MockDriver
	auditPath string
}

func newAgentFixture(t *testing.T, mode action.Mode, token string, limiter *ratelimit.Limiter) *agentFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src := &stubSource{
		screens: []screen.Screen{
			{Index: 0, Primary: true, Width: 1920, Height: 1080, Name: "Display 1"},
			{Index: 1, Left: 1920, Width: 1920, Height: 1080, Name: "Display 2"},
		},
		img: img,
	}

	driver := new(MockDriver)
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")

	h := NewAgentHandler(
		screen.NewFrameCache(src, 0),
		action.NewExecutor(src, driver, mode),
		audit.NewLog(auditPath),
		10*time.Millisecond,
	)

	if limiter == nil {
		limiter = ratelimit.New(60*time.Second, 1000)
	}

	engine := gin.New()
	engine.Use(middleware.RateLimit(limiter))
	engine.GET("/status", h.Status)
	engine.GET("/screens", h.Screens)
	engine.GET("/screenshot", h.Screenshot)
	engine.GET("/screenshot/:screen", h.ScreenshotByIndex)
	engine.GET("/stream", h.Stream)
	engine.POST("/exec", middleware.BearerAuth(token), h.Exec)

	return &agentFixture{engine: engine, driver: driver, auditPath: auditPath}
}

func (f *agentFixture) auditLines(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(f.auditPath)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func doJSON(engine *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestAgent_Status(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	rec := doJSON(f.engine, http.MethodGet, "/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Screens, 2)
	assert.NotZero(t, resp.Time)
}

func TestAgent_ScreensCount(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	rec := doJSON(f.engine, http.MethodGet, "/screens", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ScreensResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestAgent_ScreenshotThenNoChange(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	rec := doJSON(f.engine, http.MethodGet, "/screenshot?screen=0", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first dto.ScreenshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.NotEmpty(t, first.Image)
	assert.False(t, first.NoChange)

	rec = doJSON(f.engine, http.MethodGet, "/screenshot?screen=0", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second dto.ScreenshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.NoChange, "unchanged content must yield the sentinel")
	assert.Empty(t, second.Image)
}

func TestAgent_ScreenshotOutOfRangeQuery(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	rec := doJSON(f.engine, http.MethodGet, "/screenshot?screen=9", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgent_ScreenshotByIndexErrors(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	rec := doJSON(f.engine, http.MethodGet, "/screenshot/9", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "numeric but unknown index is 404")

	rec = doJSON(f.engine, http.MethodGet, "/screenshot/left", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-numeric index is 400")
}

func TestAgent_ScreenshotByIndexNeverSentinels(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	for i := 0; i < 2; i++ {
		rec := doJSON(f.engine, http.MethodGet, "/screenshot/0", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.ScreenshotResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Image)
		assert.False(t, resp.NoChange)
	}
}

func TestAgent_ExecDryRunAuditsOnceAndSkipsDriver(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	body := []byte(`{"action":"click","coordinates":[0.5,0.5],"screen":0}`)
	rec := doJSON(f.engine, http.MethodPost, "/exec", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ExecResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "action logged (dry-run)", resp.Message)

	assert.Equal(t, 1, f.auditLines(t), "exactly one audit record per call")
	f.driver.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
}

func TestAgent_ExecLiveRun(t *testing.T) {
	f := newAgentFixture(t, action.LiveRun, "", nil)
	f.driver.On("Click", 960, 540).Return(nil)

	body := []byte(`{"action":"click","coordinates":[0.5,0.5],"screen":0,"relative":true}`)
	rec := doJSON(f.engine, http.MethodPost, "/exec", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ExecResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "action executed (live-run)", resp.Message)
	f.driver.AssertExpectations(t)
}

func TestAgent_ExecUnauthorizedBeforeAudit(t *testing.T) {
	f := newAgentFixture(t, action.LiveRun, "secret", nil)

	body := []byte(`{"action":"click","coordinates":[100,200],"relative":false}`)
	rec := doJSON(f.engine, http.MethodPost, "/exec", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, f.auditLines(t), "rejection happens before the audit append")

	// Correct token passes.
	f.driver.On("Click", mock.Anything, mock.Anything).Return(nil)
	rec = doJSON(f.engine, http.MethodPost, "/exec", body,
		map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.auditLines(t))
}

func TestAgent_ExecWhitespaceAuthHeaderAuditsAsNone(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	// With no token configured the auth middleware passes anything through,
	// including a header that splits to zero fields.
	body := []byte(`{"action":"click","coordinates":[0.5,0.5],"screen":0}`)
	rec := doJSON(f.engine, http.MethodPost, "/exec", body,
		map[string]string{"Authorization": "   "})
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(f.auditPath)
	require.NoError(t, err)
	var entry audit.Record
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "none", entry.TokenID)
}

func TestAgent_StreamEmitsFramesUntilCancel(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream?screen=0", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.ServeHTTP(rec, req)
	}()

	// Let a few 10ms frame intervals elapse, then drop the client.
	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return after the request context was cancelled")
	}

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "--frame\r\n"), 2, "successive parts are framed")
	assert.Contains(t, body, "Content-Type: image/jpeg")
	assert.Contains(t, body, "Content-Length: ")
}

func TestAgent_ExecInvalidJSON(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	rec := doJSON(f.engine, http.MethodPost, "/exec", []byte(`{not json`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.auditLines(t))
}

func TestAgent_ExecUnknownKind(t *testing.T) {
	f := newAgentFixture(t, action.DryRun, "", nil)

	rec := doJSON(f.engine, http.MethodPost, "/exec", []byte(`{"action":"reboot"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgent_RateLimitAppliesToAllEndpoints(t *testing.T) {
	limiter := ratelimit.New(60*time.Second, 2)
	f := newAgentFixture(t, action.DryRun, "", limiter)

	require.Equal(t, http.StatusOK, doJSON(f.engine, http.MethodGet, "/status", nil, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(f.engine, http.MethodGet, "/screens", nil, nil).Code)

	rec := doJSON(f.engine, http.MethodGet, "/status", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}
