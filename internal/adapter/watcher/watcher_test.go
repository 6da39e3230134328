package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func collect(t *testing.T, events <-chan string, want int, wait time.Duration) []string {
	t.Helper()
	var got []string
	timeout := time.After(wait)
	for len(got) < want {
		select {
		case p, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, p)
		case <-timeout:
			return got
		}
	}
	return got
}

func TestFSObserver_ReportsSettledJSONFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.json"), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	obs, err := New(dir, 50*time.Millisecond, discard)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go obs.Run(ctx)

	sub := filepath.Join(dir, "batch")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond) // let the new directory be added

	write := func(path, body string) {
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dir, "post_1.json"), `{"postId":"1"}`)
	write(filepath.Join(dir, "notes.txt"), "ignored")
	write(filepath.Join(dir, ".hidden.json"), "{}")
	write(filepath.Join(sub, "post_2.JSON"), `{"postId":"2"}`)

	got := collect(t, obs.Events(), 2, 2*time.Second)
	sort.Strings(got)
	want := []string{filepath.Join(dir, "batch", "post_2.JSON"), filepath.Join(dir, "post_1.json")}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s, got %s", want[i], got[i])
		}
	}

	// Nothing else should follow.
	if extra := collect(t, obs.Events(), 1, 200*time.Millisecond); len(extra) != 0 {
		t.Errorf("unexpected extra events: %v", extra)
	}
}

func TestFSObserver_CoalescesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir, 150*time.Millisecond, discard)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go obs.Run(ctx)

	path := filepath.Join(dir, "chunked.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, chunk := range []string{`{"postId":`, `"c1",`, `"text":"x"}`} {
		f.WriteString(chunk)
		time.Sleep(20 * time.Millisecond)
	}
	f.Close()

	got := collect(t, obs.Events(), 2, 600*time.Millisecond)
	if len(got) != 1 || got[0] != path {
		t.Fatalf("expected a single event for %s, got %v", path, got)
	}
}

func TestFSObserver_SkipsFilesRemovedBeforeSettling(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir, 100*time.Millisecond, discard)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go obs.Run(ctx)

	path := filepath.Join(dir, "gone.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if got := collect(t, obs.Events(), 1, 400*time.Millisecond); len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestFSObserver_ClosesEventsOnCancel(t *testing.T) {
	obs, err := New(filepath.Join(t.TempDir(), "created"), 10*time.Millisecond, discard)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- obs.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-obs.Events(); ok {
		t.Error("expected events channel to be closed")
	}
}

func TestFSObserver_ReportsEachArrivalOnce(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir, 100*time.Millisecond, discard)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go obs.Run(ctx)

	path := filepath.Join(dir, "post.json")
	if err := os.WriteFile(path, []byte(`{"postId":"1"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if got := collect(t, obs.Events(), 1, time.Second); len(got) != 1 || got[0] != path {
		t.Fatalf("expected one event for %s, got %v", path, got)
	}

	// Rewriting after the file settled is not a new arrival.
	if err := os.WriteFile(path, []byte(`{"postId":"1","text":"edited"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if extra := collect(t, obs.Events(), 1, 400*time.Millisecond); len(extra) != 0 {
		t.Fatalf("expected no event for a rewrite, got %v", extra)
	}

	// Removing and creating it again is.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"postId":"1"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if got := collect(t, obs.Events(), 1, time.Second); len(got) != 1 || got[0] != path {
		t.Fatalf("expected a new event after re-creation, got %v", got)
	}
}
