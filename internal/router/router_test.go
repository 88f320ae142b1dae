package router_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pomodoro/timerd/internal/channel"
	"pomodoro/timerd/internal/db"
	"pomodoro/timerd/internal/handler"
	"pomodoro/timerd/internal/model"
	"pomodoro/timerd/internal/repository"
	"pomodoro/timerd/internal/router"
	"pomodoro/timerd/internal/service"
	"pomodoro/timerd/internal/settings"
)

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type historyEnvelope struct {
	Sessions []model.SessionHistoryEntry `json:"sessions"`
}

type testApp struct {
	server   http.Handler
	hub      *channel.Hub
	engine   *service.TimerEngine
	settings *settings.Provider
	tokens   *service.TokenService
}

func TestCommandFlowOverHTTP(t *testing.T) {
	app := setupTestApp(t, false)

	status, body := requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{"type": "GET_TIMER_STATE"})
	if status != http.StatusOK {
		t.Fatalf("expected 200 for state, got %d: %s", status, body)
	}
	var state model.TimerState
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.SessionType != model.SessionFocus || state.CurrentTime != 1500 || state.IsRunning {
		t.Fatalf("unexpected initial state: %+v", state)
	}

	status, body = requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{
		"type":           "START_TIMER",
		"currentTime":    1500,
		"totalTime":      1500,
		"currentSession": 1,
		"sessionType":    "focus",
		"sessionInfo":    map[string]any{"goal": "ship the release", "energy": 4},
	})
	if status != http.StatusOK || !strings.Contains(string(body), `"success":true`) {
		t.Fatalf("expected success ack, got %d: %s", status, body)
	}
	if !app.engine.State().IsRunning {
		t.Fatal("expected timer to be running")
	}

	status, body = requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{"type": "PAUSE_TIMER"})
	if status != http.StatusOK || !strings.Contains(string(body), `"success":true`) {
		t.Fatalf("expected success ack on pause, got %d: %s", status, body)
	}

	status, _ = requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{
		"type":           "SKIP_TIMER",
		"sessionType":    "focus",
		"currentSession": 4,
	})
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on skip, got %d", status)
	}
	state = getState(t, app.server, "")
	if state.SessionType != model.SessionLongBreak || state.CurrentSession != 1 || state.CurrentTime != 900 {
		t.Fatalf("unexpected state after skip: %+v", state)
	}
}

func TestSettingsUpdatedCommand(t *testing.T) {
	app := setupTestApp(t, false)

	status, body := requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{
		"type": "SETTINGS_UPDATED",
		"settings": map[string]any{
			"focusDuration":        50,
			"breakDuration":        10,
			"longBreakDuration":    30,
			"soundEnabled":         false,
			"desktopNotifications": true,
		},
	})
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on settings update, got %d: %s", status, body)
	}
	if got := app.settings.Current().FocusDuration; got != 50 {
		t.Fatalf("expected stored focus duration 50, got %d", got)
	}

	requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{"type": "SKIP_TIMER"})
	state := getState(t, app.server, "")
	if state.SessionType != model.SessionBreak || state.CurrentTime != 600 {
		t.Fatalf("expected a 10 minute break, got %+v", state)
	}
}

func TestSettingsUpdatedPartialPayloadKeepsDefaults(t *testing.T) {
	app := setupTestApp(t, false)

	status, body := requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{
		"type":     "SETTINGS_UPDATED",
		"settings": map[string]any{"focusDuration": 30},
	})
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on settings update, got %d: %s", status, body)
	}

	got := app.settings.Current()
	want := model.DefaultSettings()
	want.FocusDuration = 30
	if got != want {
		t.Fatalf("expected absent keys to take defaults, got %+v", got)
	}
}

func TestCommandErrors(t *testing.T) {
	app := setupTestApp(t, false)

	cases := []struct {
		body     string
		wantCode string
	}{
		{`{not json`, "invalid_json"},
		{`{}`, "invalid_json"},
		{`{"type":"REWIND_TIMER"}`, "unknown_command"},
		{`{"type":"START_TIMER","sessionType":"nap"}`, "invalid_session_type"},
		{`{"type":"START_TIMER","currentTime":-3}`, "invalid_duration"},
		{`{"type":"SETTINGS_UPDATED"}`, "missing_settings"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		recorder := httptest.NewRecorder()
		app.server.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.body, recorder.Code)
		}
		var resp apiErrorEnvelope
		if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal error response: %v", err)
		}
		if resp.Error.Code != tc.wantCode {
			t.Fatalf("%s: expected %s, got %s", tc.body, tc.wantCode, resp.Error.Code)
		}
	}
}

func TestSessionCompletionIsRecorded(t *testing.T) {
	app := setupTestApp(t, false)

	status, _ := requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{
		"type":           "START_TIMER",
		"currentTime":    2,
		"totalTime":      2,
		"currentSession": 1,
		"sessionType":    "focus",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}

	deadline := time.Now().Add(3 * time.Second)
	for app.engine.State().SessionType != model.SessionBreak {
		if time.Now().After(deadline) {
			t.Fatal("session did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}

	status, body := requestJSON(t, app.server, http.MethodGet, "/api/history?limit=10", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", status)
	}
	var history historyEnvelope
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Sessions) != 1 || history.Sessions[0].Duration != 2 || history.Sessions[0].Type != model.SessionFocus {
		t.Fatalf("unexpected history: %s", body)
	}

	status, body = requestJSON(t, app.server, http.MethodGet, "/api/stats/today", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for stats, got %d", status)
	}
	var stats model.DailyStats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Sessions != 1 || stats.FocusTime != 2 || stats.Date != model.DayKey(time.Now()) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestEventStreamDeliversNotifications(t *testing.T) {
	app := setupTestApp(t, false)
	server := httptest.NewServer(app.server)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open event stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
		close(events)
	}()

	first := <-events
	if !strings.Contains(first, `"connected"`) {
		t.Fatalf("expected connected event, got %s", first)
	}

	requestJSON(t, app.server, http.MethodPost, "/api/commands", "", map[string]any{"type": "SKIP_TIMER"})

	select {
	case raw := <-events:
		var n channel.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			t.Fatalf("unmarshal notification: %v", err)
		}
		if n.Type != channel.NotifySessionComplete || n.NewState == nil || n.NewState.SessionType != model.SessionBreak {
			t.Fatalf("unexpected notification: %s", raw)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for notification")
	}
}

func TestAuthRequiredWhenTokensConfigured(t *testing.T) {
	app := setupTestApp(t, true)

	status, body := requestJSON(t, app.server, http.MethodGet, "/api/timer/state", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	var resp apiErrorEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if resp.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %s", resp.Error.Code)
	}

	status, _ = requestJSON(t, app.server, http.MethodGet, "/api/timer/state", "garbage", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}

	token, apiErr := app.tokens.Issue("pomoctl")
	if apiErr != nil {
		t.Fatalf("issue token: %v", apiErr)
	}
	getState(t, app.server, token)

	status, _ = requestJSON(t, app.server, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected health to stay public, got %d", status)
	}
}

func TestHealthReportsObserverCount(t *testing.T) {
	app := setupTestApp(t, false)

	observers := func() int {
		status, body := requestJSON(t, app.server, http.MethodGet, "/health", "", nil)
		if status != http.StatusOK {
			t.Fatalf("expected 200 from health, got %d", status)
		}
		var resp struct {
			Status    string `json:"status"`
			Observers int    `json:"observers"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("unmarshal health response: %v", err)
		}
		if resp.Status != "ok" {
			t.Fatalf("unexpected health status %q", resp.Status)
		}
		return resp.Observers
	}

	if got := observers(); got != 0 {
		t.Fatalf("expected no observers, got %d", got)
	}
	sub := app.hub.Subscribe(1)
	if got := observers(); got != 1 {
		t.Fatalf("expected one observer, got %d", got)
	}
	app.hub.Unsubscribe(sub)
	if got := observers(); got != 0 {
		t.Fatalf("expected observer to be gone, got %d", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	app := setupTestApp(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/commands", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	app.server.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestApp(t *testing.T, withAuth bool) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	database, err := db.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if _, err := db.RunMigrations(context.Background(), database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	timerRepo := repository.NewTimerRepository(repository.NewKVRepository(database))
	if err := timerRepo.EnsureInitialized(context.Background(), model.DayKey(time.Now())); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	settingsProvider := settings.NewProvider(filepath.Join(dir, "settings.yaml"))
	hub := channel.NewHub()
	recorder := service.NewRecorder(timerRepo, service.SystemClock{})

	engine := service.NewTimerEngine(service.EngineDeps{
		Repo:      timerRepo,
		Recorder:  recorder,
		Settings:  settingsProvider,
		Publisher: hub,
	}, service.EngineConfig{TickInterval: 10 * time.Millisecond})
	t.Cleanup(engine.Close)
	if err := engine.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	app := &testApp{hub: hub, engine: engine, settings: settingsProvider}
	opts := router.Options{
		CommandHandler: handler.NewCommandHandler(channel.NewDispatcher(engine, settingsProvider)),
		TimerHandler:   handler.NewTimerHandler(engine, timerRepo, recorder),
		EventsHandler:  handler.NewEventsHandler(hub),
		Observers:      hub,
		CORSOrigins:    []string{"http://localhost:5173"},
	}
	if withAuth {
		app.tokens = service.NewTokenService("test-secret", time.Hour)
		opts.Tokens = app.tokens
	}
	app.server = router.New(opts)
	return app
}

func getState(t *testing.T, server http.Handler, token string) model.TimerState {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/timer/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get state failed with status %d: %s", status, string(body))
	}
	var state model.TimerState
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("unmarshal state response: %v", err)
	}
	return state
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
