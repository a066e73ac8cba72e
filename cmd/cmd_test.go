package cmd

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/otherjamesbrown/minutes/config"
	"github.com/otherjamesbrown/minutes/credentials"
)

const analysisJSON = `{"keyDecisions":["Launch on Friday"],` +
	`"actionItems":[{"task":"Update the changelog","owner":"Priya","deadline":"Thursday"}],` +
	`"openQuestions":["Who signs off?"],` +
	`"riskFlags":[{"type":"blocker","description":"Staging is down","severity":"high"}],` +
	`"nextSteps":["Sync Monday"]}`

// testDeps returns deps backed by a temp config dir and the mock keyring.
func testDeps(t *testing.T) *CommandDeps {
	t.Helper()
	keyring.MockInit()
	t.Setenv("MINUTES_CONFIG_DIR", t.TempDir())
	t.Setenv(credentials.EnvPassword, "")

	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"
	return &CommandDeps{
		Config:      cfg,
		LoadConfig:  config.LoadConfig,
		SaveConfig:  config.SaveConfig,
		Credentials: credentials.NewKeyringStore(),
		HTTPClient:  &http.Client{},
		ReadSecret: func(string) (string, error) {
			t.Fatal("unexpected password prompt")
			return "", nil
		},
	}
}

// fakeAnthropic serves a Messages API answering every prompt with reply.
func fakeAnthropic(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"model":       config.DefaultAnthropicModel,
			"stop_reason": "end_turn",
			"content":     []map[string]string{{"type": "text", "text": reply}},
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// run executes c with args and returns its stdout.
func run(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

// newUploadRequest builds a multipart POST with fields and one file part.
func newUploadRequest(t *testing.T, path string, fields map[string]string, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
