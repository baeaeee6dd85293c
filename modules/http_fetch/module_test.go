package http_fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipedag/pipedag/internal/task"
)

func TestRun_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	out, err := run(context.Background(), &Input{URL: server.URL})
	require.NoError(t, err)

	code, _ := out.GetAttr("status_code").AsBigFloat().Int64()
	assert.Equal(t, int64(200), code)
	assert.Equal(t, "payload", out.GetAttr("body").AsString())
}

func TestRun_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := run(context.Background(), &Input{URL: server.URL})
	require.Error(t, err)
	assert.True(t, task.IsTransient(err))
}

func TestRun_ClientErrorIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := run(context.Background(), &Input{URL: server.URL})
	require.Error(t, err)
	assert.False(t, task.IsTransient(err))
}

func TestRun_ConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens here anymore

	_, err := run(context.Background(), &Input{URL: server.URL})
	require.Error(t, err)
	assert.True(t, task.IsTransient(err))
}
