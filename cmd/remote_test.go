package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/minutes/config"
)

// fakeServer records the credentials each request carried.
type fakeServer struct {
	mu        sync.Mutex
	passwords []string
	sessions  []string
	files     []string
}

func (f *fakeServer) record(password, session string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords = append(f.passwords, password)
	f.sessions = append(f.sessions, session)
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.record(body["password"], body["sessionId"])
		remaining := "3"
		if body["password"] != "" {
			remaining = "-1"
		}
		_, _ = io.WriteString(w, analysisJSON[:len(analysisJSON)-1]+`,"remainingUses":`+remaining+`,"isAdmin":false}`)
	})
	mux.HandleFunc("POST /api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, `{"error":"Invalid multipart form"}`, http.StatusBadRequest)
			return
		}
		f.record(r.FormValue("password"), r.FormValue("sessionId"))
		_, hdr, err := r.FormFile("file")
		if err == nil {
			f.mu.Lock()
			f.files = append(f.files, hdr.Filename+"|"+hdr.Header.Get("Content-Type"))
			f.mu.Unlock()
		}
		_, _ = io.WriteString(w, `{"text":"Good morning everyone.","remainingTranscriptions":4,"isAdmin":false}`)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"service_name":"minutes","version":"v0.4.1","commit":"9e1b2c3"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestRemoteAnalyze_DemoSessionPersisted(t *testing.T) {
	deps := testDeps(t)
	fake, srv := newFakeServer(t)
	deps.Config.Remote.ServerURL = srv.URL

	path := writeFile(t, "standup.vtt", standupVTT)

	out, err := run(t, NewRemoteCommand(deps), "analyze", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Launch on Friday")
	assert.Contains(t, out, "Remaining uses: 3")

	_, err = run(t, NewRemoteCommand(deps), "analyze", path)
	require.NoError(t, err)

	require.Len(t, fake.sessions, 2)
	assert.Empty(t, fake.passwords[0])
	_, err = uuid.Parse(fake.sessions[0])
	require.NoError(t, err)
	assert.Equal(t, fake.sessions[0], fake.sessions[1])

	saved, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, fake.sessions[0], saved.Remote.SessionID)
}

func TestRemoteAnalyze_UsesStoredPassword(t *testing.T) {
	deps := testDeps(t)
	fake, srv := newFakeServer(t)
	deps.Config.Remote.ServerURL = srv.URL
	deps.Config.OutputFormat = config.OutputFormatJSON
	require.NoError(t, deps.Credentials.SetPassword("hunter22"))

	out, err := run(t, NewRemoteCommand(deps), "analyze", writeFile(t, "standup.vtt", standupVTT))
	require.NoError(t, err)

	require.Len(t, fake.passwords, 1)
	assert.Equal(t, "hunter22", fake.passwords[0])
	assert.Empty(t, fake.sessions[0])
	assert.Contains(t, out, `"remainingUses": "unlimited"`)
}

func TestRemoteAnalyze_DemoFlag(t *testing.T) {
	deps := testDeps(t)
	fake, srv := newFakeServer(t)
	deps.Config.Remote.ServerURL = srv.URL
	deps.Config.Remote.SessionID = "fixed-session"
	require.NoError(t, deps.Credentials.SetPassword("hunter22"))

	_, err := run(t, NewRemoteCommand(deps), "analyze", "--demo", writeFile(t, "standup.vtt", standupVTT))
	require.NoError(t, err)

	assert.Equal(t, []string{""}, fake.passwords)
	assert.Equal(t, []string{"fixed-session"}, fake.sessions)
}

func TestRemoteTranscribe(t *testing.T) {
	deps := testDeps(t)
	fake, srv := newFakeServer(t)
	deps.Config.Remote.ServerURL = srv.URL
	deps.Config.Remote.SessionID = "s-1"

	out, err := run(t, NewRemoteCommand(deps), "transcribe", writeFile(t, "standup.m4a", "audio"))
	require.NoError(t, err)
	assert.Contains(t, out, "Good morning everyone.")
	assert.Contains(t, out, "Remaining transcriptions: 4")
	assert.Equal(t, []string{"standup.m4a|audio/m4a"}, fake.files)
	assert.Equal(t, []string{"s-1"}, fake.sessions)
}

func TestRemoteTranscribe_MissingFile(t *testing.T) {
	deps := testDeps(t)
	_, srv := newFakeServer(t)
	deps.Config.Remote.ServerURL = srv.URL

	_, err := run(t, NewRemoteCommand(deps), "transcribe", "/nonexistent/clip.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open audio file")
}

func TestRemoteStatus(t *testing.T) {
	deps := testDeps(t)
	_, srv := newFakeServer(t)
	deps.Config.Remote.ServerURL = srv.URL

	out, err := run(t, NewRemoteCommand(deps), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status:  healthy")
	assert.Contains(t, out, "Version: v0.4.1 (9e1b2c3)")
}

func TestAudioContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", audioContentType("a.MP3"))
	assert.Equal(t, "audio/flac", audioContentType("/tmp/b.flac"))
	assert.Equal(t, "application/octet-stream", audioContentType("c.aiff"))
}
