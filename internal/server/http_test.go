package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/events"
)

func testConfig() *common.Config {
	cfg := common.DefaultConfig()
	cfg.Database.DSN = ":memory:"
	cfg.OCR.Engine = "none"
	cfg.OCR.Pdftoppm = "definitely-not-installed-pdftoppm"
	cfg.LLM.Provider = "none"
	cfg.Jobs.Timeout = 10 * time.Second
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func upload(t *testing.T, url, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/documents", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestNewAppWithoutCapabilities(t *testing.T) {
	app := newTestApp(t)
	assert.False(t, app.Capabilities.OCR)
	assert.False(t, app.Capabilities.Model)
	assert.False(t, app.Capabilities.Rasterizer)
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "mysql"
	_, err := NewApp(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["database"])
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp := upload(t, srv.URL, "notes.txt", "hello")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

// An image with no OCR or model available ends in an error event carrying
// the fallback record, and progress is visible over the websocket.
func TestUploadStreamsJobEvents(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return app.Bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	resp := upload(t, srv.URL, "photo.png", "not really a png")
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var up uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	require.NotEmpty(t, up.JobID)

	var statuses []constants.JobStatus
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev events.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.JobID != up.JobID {
			continue
		}
		statuses = append(statuses, ev.Status)
		if ev.Status.Terminal() {
			assert.True(t, ev.Fallback)
			require.NotNil(t, ev.Data)
			assert.NotEmpty(t, ev.Data.InvoiceNumber)
			break
		}
	}
	assert.Equal(t, []constants.JobStatus{
		constants.JobStatusProcessing, constants.JobStatusExtracted, constants.JobStatusError,
	}, statuses)
}
