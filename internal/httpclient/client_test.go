package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client, err := New(Options{Timeout: 5 * time.Second, MaxIdleConns: 4})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 4, transport.MaxIdleConnsPerHost)
	assert.NotSame(t, http.DefaultTransport, transport)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestNewWithSOCKSProxy(t *testing.T) {
	client, err := New(Options{SOCKSProxy: "127.0.0.1:1080"})
	require.NoError(t, err)

	transport := client.Transport.(*http.Transport)
	assert.Nil(t, transport.Proxy)
	assert.NotNil(t, transport.DialContext)
}

func TestResponseHeaderTimeoutLeavesBodyUnbounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow-headers" {
			time.Sleep(300 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		for i := 0; i < 4; i++ {
			time.Sleep(50 * time.Millisecond)
			io.WriteString(w, "chunk")
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	client, err := New(Options{ResponseHeaderTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Zero(t, client.Timeout)
	assert.Equal(t, 100*time.Millisecond, client.Transport.(*http.Transport).ResponseHeaderTimeout)

	t.Run("body may outlast the header timeout", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/stream")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "chunkchunkchunkchunk", string(body))
	})

	t.Run("late headers fail", func(t *testing.T) {
		_, err := client.Get(srv.URL + "/slow-headers")
		assert.Error(t, err)
	})
}
