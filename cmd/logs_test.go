package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLastLines(t *testing.T) {
	log := "one\ntwo\nthree\nfour\n"
	tests := []struct {
		n    int
		want []string
	}{
		{2, []string{"three", "four"}},
		{10, []string{"one", "two", "three", "four"}},
		{0, nil},
	}
	for _, tt := range tests {
		got, err := lastLines(strings.NewReader(log), tt.n)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("lastLines(%d) mismatch (-want +got):\n%s", tt.n, diff)
		}
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *lockedBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if out.String() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output %q, want %q", out.String(), want)
}

func TestLogFollower(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lastLines(f, 10); err != nil {
		t.Fatal(err)
	}

	follower, err := newLogFollower(path, f)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var out lockedBuffer
	done := make(chan error, 1)
	go func() { done <- follower.Run(ctx, &out) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
		follower.Close()
	})

	appendLog := func(s string) {
		t.Helper()
		lf, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatal(err)
		}
		defer lf.Close()
		if _, err := lf.WriteString(s); err != nil {
			t.Fatal(err)
		}
	}

	appendLog("first\n")
	waitForOutput(t, &out, "first\n")

	// shorter than what was already read, so the follower must rewind
	if err := os.WriteFile(path, []byte("t\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForOutput(t, &out, "first\nt\n")

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("recreated\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitForOutput(t, &out, "first\nt\nrecreated\n")

	appendLog("more\n")
	waitForOutput(t, &out, "first\nt\nrecreated\nmore\n")
}
