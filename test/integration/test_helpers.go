//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-fileops/internal/app"
	"go-fileops/internal/config"
	"go-fileops/internal/handler"
	"go-fileops/internal/middleware"
	"go-fileops/internal/model"
	"go-fileops/internal/router"
	"go-fileops/internal/websocket"
)

type testServer struct {
	*httptest.Server
	core  *app.Core
	token string
}

func newAuthedServer(t *testing.T) *testServer {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{
		ServerPort:              "8080",
		ServerReadTimeout:       15 * time.Second,
		ServerWriteTimeout:      30 * time.Second,
		ServerIdleTimeout:       120 * time.Second,
		RequestTimeout:          30 * time.Second,
		CORSOrigins:             []string{"*"},
		RateLimitRPM:            1000,
		APITokenSecret:          "test-secret",
		APITokenTTL:             time.Hour,
		TrashRoot:               filepath.Join(base, "trash"),
		LogDir:                  filepath.Join(base, "logs"),
		LogMaxBytes:             1024 * 1024,
		LogMaxFiles:             3,
		LogMaxAge:               24 * time.Hour,
		ChunkSize:               32 * 1024,
		ProgressInterval:        10 * time.Millisecond,
		MaxConcurrentOperations: 2,
		OperationHistory:        64,
		ConflictDefault:         string(model.ConflictAsk),
		DeleteBehavior:          config.DeleteToTrash,
	}

	core, err := app.NewCore(context.Background(), cfg)
	require.NoError(t, err)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub(core.Bus)
	go hub.Run(hubCtx)

	handlers := router.Handlers{
		Operations: handler.NewOperationsHandler(core.Engine, nil),
		Log:        handler.NewLogHandler(core.Engine),
		Trash:      handler.NewTrashHandler(core.Engine),
		Auth:       handler.NewAuthHandler(core.Tokens),
	}
	server := httptest.NewServer(router.New(cfg, core.Metrics, middleware.NewAuthMiddleware(core.Tokens), handlers, hub, nil))

	token, err := core.Tokens.Issue("integration")
	require.NoError(t, err)

	t.Cleanup(func() {
		server.Close()
		stopHub()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = core.Close(ctx)
	})

	return &testServer{Server: server, core: core, token: token.Token}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func (s *testServer) do(t *testing.T, method string, path string, body any) (int, envelope) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (s *testServer) submit(t *testing.T, request model.OperationRequest) string {
	t.Helper()

	status, env := s.do(t, http.MethodPost, "/api/v1/operations", request)
	require.Equal(t, http.StatusAccepted, status, "%+v", env.Error)

	data := decodeData[struct {
		OperationID string `json:"operation_id"`
	}](t, env)
	require.NotEmpty(t, data.OperationID)
	return data.OperationID
}

// waitFor polls the operation until cond holds.
func (s *testServer) waitFor(t *testing.T, id string, cond func(model.Operation) bool) model.Operation {
	t.Helper()

	var op model.Operation
	require.Eventually(t, func() bool {
		status, env := s.do(t, http.MethodGet, "/api/v1/operations/"+id, nil)
		if status != http.StatusOK {
			return false
		}
		op = decodeData[model.Operation](t, env)
		return cond(op)
	}, 10*time.Second, 20*time.Millisecond)
	return op
}

func (s *testServer) waitTerminal(t *testing.T, id string) model.Operation {
	t.Helper()
	return s.waitFor(t, id, func(op model.Operation) bool { return op.Status.Terminal() })
}
