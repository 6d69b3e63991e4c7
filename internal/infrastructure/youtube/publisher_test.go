package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/logging"
)

type fakeCredential struct {
	token       string
	err         error
	invalidated atomic.Int32
}

func (c *fakeCredential) Token(context.Context) (string, error) {
	return c.token, c.err
}

func (c *fakeCredential) Invalidate() {
	c.invalidated.Add(1)
}

func composedFile(t *testing.T) domain.ComposedVideo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "short.mp4")
	if err := os.WriteFile(path, []byte("not really an mp4"), 0o600); err != nil {
		t.Fatalf("write video: %v", err)
	}
	return domain.ComposedVideo{ItemID: "item-1", FilePath: path, DurationSeconds: 30}
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": reason,
			"errors":  []map[string]string{{"reason": reason, "domain": "youtube", "message": reason}},
		},
	})
}

func TestPublishUploadsAndAddsToPlaylist(t *testing.T) {
	t.Parallel()

	var uploads, playlistAdds atomic.Int32
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		auth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "playlistItems"):
			playlistAdds.Add(1)
			_, _ = w.Write([]byte(`{"id":"pli-1"}`))
		case strings.Contains(r.URL.Path, "videos"):
			uploads.Add(1)
			_, _ = w.Write([]byte(`{"id":"vid-42"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	cred := &fakeCredential{token: "secret"}
	pub := NewPublisher(cred, srv.URL, logging.Discard())

	res, err := pub.Publish(context.Background(), composedFile(t), domain.VideoMetadata{
		Title:      "Breaking News: Test",
		Tags:       []string{"#News"},
		CategoryID: "25",
		PlaylistID: "PL123",
		Privacy:    "private",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.RemoteVideoID != "vid-42" || res.ItemID != "item-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.PublishedAt.IsZero() {
		t.Fatalf("publish time not set")
	}
	if uploads.Load() != 1 || playlistAdds.Load() != 1 {
		t.Fatalf("uploads=%d playlist=%d", uploads.Load(), playlistAdds.Load())
	}
	if got := auth.Load(); got != "Bearer secret" {
		t.Fatalf("authorization header = %v", got)
	}
}

func TestPublishIgnoresPlaylistFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if strings.Contains(r.URL.Path, "playlistItems") {
			writeAPIError(w, http.StatusNotFound, "playlistNotFound")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"vid-7"}`))
	}))
	t.Cleanup(srv.Close)

	pub := NewPublisher(&fakeCredential{token: "t"}, srv.URL, logging.Discard())
	res, err := pub.Publish(context.Background(), composedFile(t), domain.VideoMetadata{Title: "x", PlaylistID: "missing"})
	if err != nil {
		t.Fatalf("playlist failure must not fail publish: %v", err)
	}
	if res.RemoteVideoID != "vid-7" {
		t.Fatalf("unexpected id %q", res.RemoteVideoID)
	}
}

func TestPublishClassifiesErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		code        int
		reason      string
		want        error
		invalidates bool
	}{
		{name: "unauthorized", code: http.StatusUnauthorized, reason: "authError", want: domain.ErrAuthExpired, invalidates: true},
		{name: "quota", code: http.StatusForbidden, reason: "quotaExceeded", want: domain.ErrQuotaExceeded},
		{name: "upload limit", code: http.StatusForbidden, reason: "uploadLimitExceeded", want: domain.ErrQuotaExceeded},
		{name: "rate limited", code: http.StatusTooManyRequests, reason: "rateLimitExceeded", want: domain.ErrTransientUpload},
		{name: "server error", code: http.StatusServiceUnavailable, reason: "backendError", want: domain.ErrTransientUpload},
		{name: "bad request", code: http.StatusBadRequest, reason: "invalidTitle"},
		{name: "forbidden", code: http.StatusForbidden, reason: "forbidden"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				writeAPIError(w, tc.code, tc.reason)
			}))
			t.Cleanup(srv.Close)

			cred := &fakeCredential{token: "t"}
			pub := NewPublisher(cred, srv.URL, logging.Discard())
			_, err := pub.Publish(context.Background(), composedFile(t), domain.VideoMetadata{Title: "x"})
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want == nil && domain.ErrorKind(err) != "" {
				t.Fatalf("expected permanent failure, got %s: %v", domain.ErrorKind(err), err)
			}
			if got := cred.invalidated.Load() > 0; got != tc.invalidates {
				t.Fatalf("invalidated = %v, want %v", got, tc.invalidates)
			}
		})
	}
}

func TestPublishNetworkErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	pub := NewPublisher(&fakeCredential{token: "t"}, url, logging.Discard())
	_, err := pub.Publish(context.Background(), composedFile(t), domain.VideoMetadata{Title: "x"})
	if !errors.Is(err, domain.ErrTransientUpload) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPublishPassesCredentialErrors(t *testing.T) {
	t.Parallel()

	pub := NewPublisher(&fakeCredential{err: domain.ErrAuthExpired}, "http://127.0.0.1:1", logging.Discard())
	_, err := pub.Publish(context.Background(), composedFile(t), domain.VideoMetadata{})
	if !errors.Is(err, domain.ErrAuthExpired) {
		t.Fatalf("expected auth expired, got %v", err)
	}

	pub = NewPublisher(&fakeCredential{err: errors.New("keychain locked")}, "http://127.0.0.1:1", logging.Discard())
	_, err = pub.Publish(context.Background(), composedFile(t), domain.VideoMetadata{})
	if !errors.Is(err, domain.ErrTransientUpload) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPublishMissingFile(t *testing.T) {
	t.Parallel()

	pub := NewPublisher(&fakeCredential{token: "t"}, "http://127.0.0.1:1", logging.Discard())
	_, err := pub.Publish(context.Background(), domain.ComposedVideo{ItemID: "x", FilePath: "/missing.mp4"}, domain.VideoMetadata{})
	if err == nil || domain.IsFatal(err) {
		t.Fatalf("expected non-fatal error, got %v", err)
	}
}
