package engine

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *Game) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MinFood = 0
	g := NewGame(cfg, "", zerolog.Nop())
	// Handlers wait for their command to be applied, which only happens
	// inside the scheduler's tick loop.
	go g.Run()
	t.Cleanup(func() {
		g.Stop()
		<-g.Done()
	})
	s, err := NewServer(g)
	require.NoError(t, err)
	return s, g
}

func doJSON(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleRegister_Success(t *testing.T) {
	s, g := newTestServer(t)
	rec := doJSON(s, http.MethodPost, "/api/register", map[string]string{"name": "alice", "aiFunction": "0"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["snakeId"])
	assert.Len(t, g.state.Snakes, 1)
}

func TestHandleRegister_RejectsMissingFields(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(s, http.MethodPost, "/api/register", map[string]string{"name": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRegister_RejectsOversizedName(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(s, http.MethodPost, "/api/register", map[string]string{
		"name": "this-name-is-definitely-too-long-for-the-schema",
		"aiFunction": "0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit_UnknownSnakeReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(s, http.MethodPost, "/api/submit", map[string]string{"snakeId": "nonexistent", "aiFunction": "0"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSubmit_Success(t *testing.T) {
	s, g := newTestServer(t)
	regRec := doJSON(s, http.MethodPost, "/api/register", map[string]string{"name": "alice", "aiFunction": "0"})
	require.Equal(t, http.StatusOK, regRec.Code)
	var reg map[string]string
	require.NoError(t, json.Unmarshal(regRec.Body.Bytes(), &reg))

	rec := doJSON(s, http.MethodPost, "/api/submit", map[string]string{"snakeId": reg["snakeId"], "aiFunction": "angleTo(0,0,1,0)"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "angleTo(0,0,1,0)", g.state.Snakes[reg["snakeId"]].AISource)
}

func TestHandleState_ReturnsCurrentSnapshot(t *testing.T) {
	s, _ := newTestServer(t)
	doJSON(s, http.MethodPost, "/api/register", map[string]string{"name": "alice", "aiFunction": "0"})

	rec := doJSON(s, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view StateView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Snakes, 1)
}

func TestHandleAdminControl_StartPauseReset(t *testing.T) {
	s, g := newTestServer(t)

	rec := doJSON(s, http.MethodPost, "/api/admin/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusRunning, g.state.Status)

	rec = doJSON(s, http.MethodPost, "/api/admin/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusPaused, g.state.Status)

	rec = doJSON(s, http.MethodPost, "/api/admin/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusWaiting, g.state.Status)
}

func TestHandleAdminRemoveSnake(t *testing.T) {
	s, g := newTestServer(t)
	regRec := doJSON(s, http.MethodPost, "/api/register", map[string]string{"name": "alice", "aiFunction": "0"})
	var reg map[string]string
	require.NoError(t, json.Unmarshal(regRec.Body.Bytes(), &reg))

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/snake/"+reg["snakeId"], nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, g.state.Snakes, 0)

	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}

func TestHandleAdminConfig_AppliesValidPatch(t *testing.T) {
	s, g := newTestServer(t)
	rec := doJSON(s, http.MethodPost, "/api/admin/config", map[string]interface{}{"tickRateMs": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, g.cfg.TickRateMs)
}

func TestHandleAdminConfig_RejectsOutOfRangeValue(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(s, http.MethodPost, "/api/admin/config", map[string]interface{}{"tickRateMs": 5000})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "schema rejects values outside the documented range")
}

func TestHandleAdminConfig_RejectsUnknownField(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(s, http.MethodPost, "/api/admin/config", map[string]interface{}{"bogusField": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAIContract_DescribesEntryPoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(s, http.MethodGet, "/api/docs/ai-contract", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "move(state)", doc["entryPoint"])
}

func TestHandleAdminStats_ReportsCounts(t *testing.T) {
	s, _ := newTestServer(t)
	doJSON(s, http.MethodPost, "/api/register", map[string]string{"name": "alice", "aiFunction": "0"})

	rec := doJSON(s, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AdminStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.SnakeCount)
}
