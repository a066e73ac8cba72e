package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/minutes/config"
	"github.com/otherjamesbrown/minutes/pkg/ledger"
	"github.com/otherjamesbrown/minutes/pkg/logging"
)

func TestBuildServer_Analyze(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Anthropic.APIKey = "sk-test"
	cfg.Anthropic.BaseURL = fakeAnthropic(t, analysisJSON).URL

	srv, closer, err := buildServer(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer closer.Close()

	body := `{"transcript":"Priya: we launch on Friday, I will update the changelog","sessionId":"s-1"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []interface{}{"Launch on Friday"}, resp["keyDecisions"])
	assert.Equal(t, float64(4), resp["remainingUses"])
	assert.Equal(t, false, resp["isAdmin"])
}

func TestBuildServer_TranscribeLimitMessage(t *testing.T) {
	openaiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"hello"}`)
	}))
	defer openaiSrv.Close()

	cfg := config.DefaultConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.BaseURL = openaiSrv.URL
	cfg.Access.TranscribeLimit = 1

	srv, closer, err := buildServer(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer closer.Close()

	upload := func() *httptest.ResponseRecorder {
		req := newUploadRequest(t, "/api/transcribe", map[string]string{"sessionId": "s-1"}, "clip.mp3", "audio/mpeg", []byte("ID3"))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	first := upload()
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Contains(t, first.Body.String(), `"remainingTranscriptions":0`)

	second := upload()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "You've used all 1 free transcriptions")
}

func TestBuildServer_Metrics(t *testing.T) {
	srv, closer, err := buildServer(config.DefaultConfig(), logging.NewNopLogger())
	require.NoError(t, err)
	defer closer.Close()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuildLedgers(t *testing.T) {
	a, b, closer, err := buildLedgers(config.LedgerConfig{Backend: config.LedgerMemory})
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	assert.IsType(t, &ledger.MemoryLedger{}, a)
	assert.NotSame(t, a, b)

	a, b, closer, err = buildLedgers(config.LedgerConfig{
		Backend:   config.LedgerRedis,
		RedisAddr: "127.0.0.1:6379",
		KeyPrefix: "test:",
	})
	require.NoError(t, err)
	defer closer.Close()
	ra, ok := a.(*ledger.RedisLedger)
	require.True(t, ok)
	rb, ok := b.(*ledger.RedisLedger)
	require.True(t, ok)
	assert.Equal(t, "test:analyze:s", ra.Key("s"))
	assert.Equal(t, "test:transcribe:s", rb.Key("s"))

	_, _, _, err = buildLedgers(config.LedgerConfig{Backend: "etcd"})
	assert.Error(t, err)
}

func TestServeCommand_Flags(t *testing.T) {
	c := NewServeCommand(testDeps(t))
	assert.Equal(t, "serve", c.Name())
	assert.NotNil(t, c.Flags().Lookup("addr"))
}
