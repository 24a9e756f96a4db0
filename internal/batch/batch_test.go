package batch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MaxLiang-91/HF-Download/internal/downloader"
	hfdlhttp "github.com/MaxLiang-91/HF-Download/internal/http"
	"github.com/MaxLiang-91/HF-Download/internal/progress"
	"github.com/MaxLiang-91/HF-Download/internal/testutils"
	"github.com/MaxLiang-91/HF-Download/pkg/manifest"
)

func drainEvents(ch chan progress.Event) []progress.Event {
	var events []progress.Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func statusMessages(events []progress.Event) []string {
	var msgs []string
	for _, ev := range events {
		if ev.Kind == progress.KindStatus {
			msgs = append(msgs, ev.Message)
		}
	}
	return msgs
}

func openDirStore(t *testing.T, dir string) *manifest.Store {
	t.Helper()
	store, err := manifest.OpenDir(dir)
	if err != nil {
		t.Fatalf("open manifest store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// The central batch property: a complete file is skipped without any
// network traffic, a partial file resumes, an absent file downloads,
// all in listing order.
func TestRunSkipResumeFetch(t *testing.T) {
	dataA := testutils.GenerateTestData(t, 16*1024)
	dataB := testutils.GenerateTestData(t, 32*1024)
	dataC := testutils.GenerateTestData(t, 8*1024)
	server, counter := testutils.StartFileServer(t, map[string][]byte{
		"/a.bin":     dataA,
		"/b.bin":     dataB,
		"/sub/c.bin": dataC,
	})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), dataA, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.bin"), dataB[:10000], 0o644); err != nil {
		t.Fatal(err)
	}

	files := []manifest.FileEntry{
		{Filename: "a.bin", URL: server.URL + "/a.bin", Size: int64(len(dataA))},
		{Filename: "b.bin", URL: server.URL + "/b.bin", Size: int64(len(dataB))},
		{Filename: "sub/c.bin", URL: server.URL + "/sub/c.bin", Size: int64(len(dataC))},
	}

	client := hfdlhttp.NewClient(hfdlhttp.DefaultOptions())
	events := make(chan progress.Event, 256)

	err := Run(context.Background(), files, dir, Options{
		Client: client,
		Events: events,
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	if got := counter.Gets("/a.bin"); got != 0 {
		t.Errorf("complete file must not be fetched: got %d GETs", got)
	}
	if got := counter.Gets("/b.bin"); got != 1 {
		t.Errorf("expected 1 GET for partial file, got %d", got)
	}
	if got := counter.Gets("/sub/c.bin"); got != 1 {
		t.Errorf("expected 1 GET for absent file, got %d", got)
	}

	testutils.AssertFileEquals(t, filepath.Join(dir, "a.bin"), dataA)
	testutils.AssertFileEquals(t, filepath.Join(dir, "b.bin"), dataB)
	testutils.AssertFileEquals(t, filepath.Join(dir, "sub", "c.bin"), dataC)

	got := statusMessages(drainEvents(events))
	want := []string{
		"file exists, skipping",
		"resuming download",
		"download complete",
		"downloading",
		"download complete",
		"batch complete",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("status sequence mismatch:\ngot:\n%s\nwant:\n%s",
			strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestRunWritesManifestBeforeFirstTransfer(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, manifest.Name)

	data := testutils.GenerateTestData(t, 8*1024)
	var sawManifest atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			return
		}
		if _, err := os.Stat(manifestPath); err == nil {
			sawManifest.Store(true)
		}
		w.Write(data)
	}))
	defer server.Close()

	files := []manifest.FileEntry{
		{Filename: "model.bin", URL: server.URL + "/model.bin", Size: int64(len(data))},
	}
	store := openDirStore(t, dir)
	client := hfdlhttp.NewClient(hfdlhttp.DefaultOptions())

	err := Run(context.Background(), files, dir, Options{
		Client:      client,
		OriginalURL: "https://hf-mirror.com/org/model/tree/main",
		Store:       store,
	})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if !sawManifest.Load() {
		t.Error("manifest was not on disk during the first transfer")
	}

	// A fully successful run clears the manifest.
	if _, err := store.Load(context.Background()); !errors.Is(err, manifest.ErrNotFound) {
		t.Errorf("expected manifest cleared after success, got %v", err)
	}
}

func TestRunContinuesPastFailedFile(t *testing.T) {
	data := testutils.GenerateTestData(t, 8*1024)
	server, counter := testutils.StartFileServer(t, map[string][]byte{"/good.bin": data})

	dir := t.TempDir()
	files := []manifest.FileEntry{
		{Filename: "missing.bin", URL: server.URL + "/missing.bin", Size: 4096},
		{Filename: "good.bin", URL: server.URL + "/good.bin", Size: int64(len(data))},
	}
	store := openDirStore(t, dir)
	client := hfdlhttp.NewClient(hfdlhttp.DefaultOptions())
	events := make(chan progress.Event, 256)

	err := Run(context.Background(), files, dir, Options{
		Client: client,
		Store:  store,
		Events: events,
	})
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Errorf("unexpected error: %v", err)
	}

	// The failure must not have stopped the file after it.
	if got := counter.Gets("/good.bin"); got != 1 {
		t.Errorf("expected the batch to continue past the failure, got %d GETs", got)
	}
	testutils.AssertFileEquals(t, filepath.Join(dir, "good.bin"), data)

	// A failed run keeps the manifest for a later resume.
	if _, err := store.Load(context.Background()); err != nil {
		t.Errorf("expected manifest retained after failure, got %v", err)
	}

	msgs := statusMessages(drainEvents(events))
	if msgs[len(msgs)-1] != "batch finished: 1 of 2 files failed" {
		t.Errorf("unexpected final status %q", msgs[len(msgs)-1])
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	data := testutils.GenerateTestData(t, 8*1024)
	server, counter := testutils.StartFileServer(t, map[string][]byte{"/model.bin": data})

	files := []manifest.FileEntry{
		{Filename: "model.bin", URL: server.URL + "/model.bin", Size: int64(len(data))},
	}
	client := hfdlhttp.NewClient(hfdlhttp.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, files, t.TempDir(), Options{Client: client})
	if !errors.Is(err, downloader.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if got := counter.Gets("/model.bin"); got != 0 {
		t.Errorf("cancelled batch must not fetch anything, got %d GETs", got)
	}
}

func TestRunCancelMidBatchStopsRemainingFiles(t *testing.T) {
	data := testutils.GenerateTestData(t, 64*1024)
	server := testutils.StartDripServer(t, data, 8*1024, 20*time.Millisecond)

	dir := t.TempDir()
	files := []manifest.FileEntry{
		{Filename: "one.bin", URL: server.URL + "/one.bin", Size: int64(len(data))},
		{Filename: "two.bin", URL: server.URL + "/two.bin", Size: int64(len(data))},
	}
	store := openDirStore(t, dir)
	client := hfdlhttp.NewClient(hfdlhttp.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan progress.Event)
	collected := make(chan []progress.Event)
	go func() {
		var all []progress.Event
		chunks := 0
		for ev := range events {
			all = append(all, ev)
			if ev.Kind == progress.KindProgress && ev.Downloaded > 0 {
				chunks++
				if chunks == 2 {
					cancel()
				}
			}
		}
		collected <- all
	}()

	err := Run(ctx, files, dir, Options{
		Client: client,
		Store:  store,
		Events: events,
	})
	close(events)
	all := <-collected

	if !errors.Is(err, downloader.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	msgs := statusMessages(all)
	if msgs[len(msgs)-1] != "batch cancelled" {
		t.Errorf("unexpected final status %q", msgs[len(msgs)-1])
	}

	// The second file must never have been started.
	if _, err := os.Stat(filepath.Join(dir, "two.bin")); err == nil {
		t.Error("batch cancel must stop before the next file")
	}

	// A cancelled run keeps the manifest for a later resume.
	if _, err := store.Load(context.Background()); err != nil {
		t.Errorf("expected manifest retained after cancel, got %v", err)
	}
}

func TestResume(t *testing.T) {
	dataA := testutils.GenerateTestData(t, 16*1024)
	dataB := testutils.GenerateTestData(t, 16*1024)
	server, counter := testutils.StartFileServer(t, map[string][]byte{
		"/a.bin": dataA,
		"/b.bin": dataB,
	})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), dataA, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.bin"), dataB[:4000], 0o644); err != nil {
		t.Fatal(err)
	}

	files := []manifest.FileEntry{
		{Filename: "a.bin", URL: server.URL + "/a.bin", Size: int64(len(dataA))},
		{Filename: "b.bin", URL: server.URL + "/b.bin", Size: int64(len(dataB))},
	}
	store := openDirStore(t, dir)
	m := manifest.New("https://hf-mirror.com/org/model/tree/main", dir, files)
	if err := store.Save(context.Background(), m); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}

	client := hfdlhttp.NewClient(hfdlhttp.DefaultOptions())
	if err := Resume(context.Background(), dir, Options{Client: client}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	if got := counter.Gets("/a.bin"); got != 0 {
		t.Errorf("finished file must not be fetched on resume, got %d GETs", got)
	}
	if got := counter.Gets("/b.bin"); got != 1 {
		t.Errorf("expected 1 GET for the interrupted file, got %d", got)
	}
	testutils.AssertFileEquals(t, filepath.Join(dir, "b.bin"), dataB)

	if _, err := store.Load(context.Background()); !errors.Is(err, manifest.ErrNotFound) {
		t.Errorf("expected manifest cleared after successful resume, got %v", err)
	}
}

func TestResumeWithoutManifest(t *testing.T) {
	err := Resume(context.Background(), t.TempDir(), Options{})
	if !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
