package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thegator/loansim/pkg/logger"
)

func TestGetRetriesOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(logger.NewNop(), 0).WithRetry(3, time.Millisecond)

	resp, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(logger.NewNop(), 0).WithRetry(2, time.Millisecond)

	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Error("expected error after exhausting retries")
	}
}

func TestDownloadWritesFile(t *testing.T) {
	body := "id,grade\n1,A\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "pool.csv")
	c := New(logger.NewNop(), 0)

	n, err := c.Download(context.Background(), srv.URL, dest)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if n != int64(len(body)) {
		t.Errorf("bytes = %d, want %d", n, len(body))
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != body {
		t.Errorf("file content = %q, want %q", data, body)
	}
}

func TestDownloadRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(logger.NewNop(), 0).DisableRetry()

	if _, err := c.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x.csv")); err == nil {
		t.Error("expected error for 404 response")
	}
}
