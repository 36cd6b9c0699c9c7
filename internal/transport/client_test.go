package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *HTTPClient {
	t.Helper()
	cfg.URL = srv.URL
	if cfg.Path == "" {
		cfg.Path = "/IPC"
	}
	c, err := NewHTTPClient(cfg)
	require.NoError(t, err)
	return c
}

func TestSendPlainText(t *testing.T) {
	var gotCommand, gotCredential, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCommand = r.URL.Query().Get("command")
		gotCredential = r.Header.Get(CredentialHeader)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("  Bot alice is farming.\n"))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, Config{Credential: "s3cret"})
	reply, err := c.Send(context.Background(), "redeem alice KEY1,KEY2")
	require.NoError(t, err)

	assert.Equal(t, "  Bot alice is farming.\n", reply, "reply must be returned unmodified")
	assert.Equal(t, "/IPC", gotPath)
	assert.Equal(t, "redeem alice KEY1,KEY2", gotCommand)
	assert.Equal(t, "s3cret", gotCredential)
}

func TestSendOmitsEmptyCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[CredentialHeader]
		assert.False(t, present)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, Config{})
	_, err := c.Send(context.Background(), "version")
	require.NoError(t, err)
}

func TestSendJSONEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{name: "result field", body: `{"Success":true,"Message":"OK","Result":"<alice> Done!"}`, want: "<alice> Done!"},
		{name: "message fallback", body: `{"Success":false,"Message":"Bot not found"}`, want: "Bot not found"},
		{name: "failure without message", body: `{"Success":false}`, wantErr: ErrProtocol},
		{name: "malformed", body: `{"Success":`, wantErr: ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			c := newTestClient(t, srv, Config{})
			reply, err := c.Send(context.Background(), "status alice")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestSendNon2xxIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credential", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, Config{})
	_, err := c.Send(context.Background(), "farm alice")

	assert.ErrorIs(t, err, ErrProtocol)
	assert.NotErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad credential")
}

func TestSendOversizedReplyIsProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", maxReplyBytes+1)))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, Config{})
	reply, err := c.Send(context.Background(), "statusall")

	assert.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "reply exceeds")
	assert.Empty(t, reply)
}

func TestSendReplyAtCapIsReturnedWhole(t *testing.T) {
	body := strings.Repeat("x", maxReplyBytes)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, Config{})
	reply, err := c.Send(context.Background(), "statusall")

	require.NoError(t, err)
	assert.Len(t, reply, maxReplyBytes)
}

func TestSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, srv, Config{})
	srv.Close()

	_, err := c.Send(context.Background(), "farm alice")
	assert.ErrorIs(t, err, ErrUnreachable)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, KindUnreachable, terr.Kind)
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := newTestClient(t, srv, Config{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Send(context.Background(), "2fano alice")

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSendCancelledByCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv, Config{Timeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Send(ctx, "farm alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPClientValidation(t *testing.T) {
	_, err := NewHTTPClient(Config{})
	assert.Error(t, err)

	_, err = NewHTTPClient(Config{URL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := NewHTTPClient(Config{URL: "http://127.0.0.1:1242/"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:1242", c.config.URL)
	assert.Equal(t, defaultTimeout, c.config.Timeout)
}

func TestErrorKindMatching(t *testing.T) {
	err := &Error{Kind: KindTimeout, Op: "send", Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "send: timeout: context deadline exceeded", err.Error())
}
