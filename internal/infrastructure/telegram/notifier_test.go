package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPublishReportPostsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier("TOKEN", "42", srv.URL+"/")
	if err := n.PublishReport(context.Background(), "run finished: 3 published"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotChat != "42" || gotText != "run finished: 3 published" {
		t.Fatalf("chat=%q text=%q", gotChat, gotText)
	}
}

func TestPublishReportTruncatesLongReports(t *testing.T) {
	t.Parallel()

	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotText = r.PostForm.Get("text")
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier("T", "1", srv.URL)
	if err := n.PublishReport(context.Background(), strings.Repeat("é", 5000)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if c := utf8.RuneCountInString(gotText); c != maxMessageRunes {
		t.Fatalf("rune count = %d, want %d", c, maxMessageRunes)
	}
}

func TestPublishReportErrors(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "1", "").PublishReport(context.Background(), "x"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	err := NewNotifier("T", "1", srv.URL).PublishReport(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected telegram error, got %v", err)
	}
}
