package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/MaxLiang-91/HF-Download/internal/testutils"
	"github.com/MaxLiang-91/HF-Download/pkg/manifest"
)

// startHubServer runs a fake hub for the org/model repository: the tree
// API on one side, ranged file downloads on the other. files maps
// repo-relative paths to contents.
func startHubServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	type treeEntry struct {
		Type string `json:"type"`
		Path string `json:"path"`
		Size int64  `json:"size"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/org/model/tree/main", func(w http.ResponseWriter, r *http.Request) {
		entries := []treeEntry{{Type: "directory", Path: "sub"}}
		for _, p := range paths {
			entries = append(entries, treeEntry{Type: "file", Path: p, Size: int64(len(files[p]))})
		}
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			t.Errorf("encode listing: %v", err)
		}
	})
	mux.HandleFunc("/org/model/resolve/main/", func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, "/org/model/resolve/main/")
		body, ok := files[rel]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			return
		}
		if start, end, ok := testutils.ParseRange(r.Header.Get("Range"), int64(len(body))); ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(body[start : end+1])
			return
		}
		w.Write(body)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func seedManifest(t *testing.T, dir, originalURL string, files []manifest.FileEntry) {
	t.Helper()

	store, err := manifest.OpenDir(dir)
	if err != nil {
		t.Fatalf("open manifest store: %v", err)
	}
	defer store.Close()

	if err := store.Save(context.Background(), manifest.New(originalURL, dir, files)); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
}

func assertNoManifest(t *testing.T, dir string) {
	t.Helper()

	store, err := manifest.OpenDir(dir)
	if err != nil {
		t.Fatalf("open manifest store: %v", err)
	}
	defer store.Close()

	if _, err := store.Load(context.Background()); !errors.Is(err, manifest.ErrNotFound) {
		t.Errorf("manifest still present after run: err = %v, want ErrNotFound", err)
	}
}

func TestRun(t *testing.T) {
	if code := run(nil); code != ExitInvalidArgs {
		t.Errorf("no arguments: exit code = %d, want %d", code, ExitInvalidArgs)
	}
	if code := run([]string{"frobnicate"}); code != ExitInvalidArgs {
		t.Errorf("unknown command: exit code = %d, want %d", code, ExitInvalidArgs)
	}
	if code := run([]string{"help"}); code != ExitSuccess {
		t.Errorf("help: exit code = %d, want %d", code, ExitSuccess)
	}
}

func TestGetCommand(t *testing.T) {
	data := testutils.GenerateTestData(t, 48*1024)
	server, counter := testutils.StartFileServer(t, map[string][]byte{"/model.bin": data})
	dir := t.TempDir()

	code := runGet([]string{"-url", server.URL + "/model.bin", "-dir", dir, "-quiet"})
	if code != ExitSuccess {
		t.Fatalf("get failed with exit code %d", code)
	}
	testutils.AssertFileEquals(t, filepath.Join(dir, "model.bin"), data)

	// A second run sees the complete file and never fetches the body.
	code = runGet([]string{"-url", server.URL + "/model.bin", "-dir", dir, "-quiet"})
	if code != ExitSuccess {
		t.Fatalf("second get failed with exit code %d", code)
	}
	if n := counter.Gets("/model.bin"); n != 1 {
		t.Errorf("body fetched %d times across both runs, want 1", n)
	}
}

func TestGetRejectsTreeURL(t *testing.T) {
	code := runGet([]string{
		"-url", "https://hf-mirror.com/org/model/tree/main",
		"-dir", t.TempDir(),
		"-quiet",
	})
	if code != ExitInvalidArgs {
		t.Errorf("tree URL: exit code = %d, want %d", code, ExitInvalidArgs)
	}
}

func TestGetUnresolvableURL(t *testing.T) {
	code := runGet([]string{"-url", "not a url at all", "-dir", t.TempDir(), "-quiet"})
	if code != ExitUnresolvableURL {
		t.Errorf("exit code = %d, want %d", code, ExitUnresolvableURL)
	}
}

func TestGetTransferFailure(t *testing.T) {
	server, _ := testutils.StartFileServer(t, map[string][]byte{})

	code := runGet([]string{"-url", server.URL + "/missing.bin", "-dir", t.TempDir(), "-quiet"})
	if code != ExitTransferFailed {
		t.Errorf("exit code = %d, want %d", code, ExitTransferFailed)
	}
}

func TestRepoCommand(t *testing.T) {
	files := map[string][]byte{
		"config.json":     testutils.GenerateTestData(t, 2048),
		"sub/weights.bin": testutils.GenerateTestData(t, 32*1024),
	}
	server := startHubServer(t, files)
	dir := t.TempDir()

	code := runRepo([]string{
		"-url", "org/model",
		"-mirror", server.URL,
		"-dir", dir,
		"-quiet",
	})
	if code != ExitSuccess {
		t.Fatalf("repo failed with exit code %d", code)
	}

	testutils.AssertFileEquals(t, filepath.Join(dir, "config.json"), files["config.json"])
	testutils.AssertFileEquals(t, filepath.Join(dir, "sub", "weights.bin"), files["sub/weights.bin"])
	assertNoManifest(t, dir)
}

func TestRepoListFailure(t *testing.T) {
	// A bare file server knows nothing about the tree API, so the
	// listing request 404s before any download starts.
	server, _ := testutils.StartFileServer(t, map[string][]byte{})

	code := runRepo([]string{
		"-url", "org/model",
		"-mirror", server.URL,
		"-dir", t.TempDir(),
		"-quiet",
	})
	if code != ExitListFailed {
		t.Errorf("exit code = %d, want %d", code, ExitListFailed)
	}
}

func TestResumeCommand(t *testing.T) {
	dataA := testutils.GenerateTestData(t, 8*1024)
	dataB := testutils.GenerateTestData(t, 24*1024)
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
	seedManifest(t, dir, server.URL+"/org/model/tree/main", []manifest.FileEntry{
		{Filename: "a.bin", URL: server.URL + "/a.bin", Size: int64(len(dataA))},
		{Filename: "b.bin", URL: server.URL + "/b.bin", Size: int64(len(dataB))},
	})

	code := runResume([]string{"-dir", dir, "-quiet"})
	if code != ExitSuccess {
		t.Fatalf("resume failed with exit code %d", code)
	}

	testutils.AssertFileEquals(t, filepath.Join(dir, "a.bin"), dataA)
	testutils.AssertFileEquals(t, filepath.Join(dir, "b.bin"), dataB)
	if n := counter.Gets("/a.bin"); n != 0 {
		t.Errorf("complete file fetched %d times, want 0", n)
	}
	if n := counter.Gets("/b.bin"); n != 1 {
		t.Errorf("partial file fetched %d times, want 1", n)
	}
	assertNoManifest(t, dir)
}

func TestResumeNothingToResume(t *testing.T) {
	code := runResume([]string{"-dir", t.TempDir(), "-quiet"})
	if code != ExitGeneralError {
		t.Errorf("exit code = %d, want %d", code, ExitGeneralError)
	}
}

func TestCleanCommand(t *testing.T) {
	dir := t.TempDir()
	seedManifest(t, dir, "https://hf-mirror.com/org/model/tree/main", []manifest.FileEntry{
		{Filename: "a.bin", URL: "https://hf-mirror.com/org/model/resolve/main/a.bin", Size: 10},
	})

	if code := runClean([]string{"-dir", dir}); code != ExitSuccess {
		t.Fatalf("clean failed with exit code %d", code)
	}
	assertNoManifest(t, dir)

	// Cleaning a directory that has no manifest is not an error.
	if code := runClean([]string{"-dir", t.TempDir()}); code != ExitSuccess {
		t.Errorf("clean on empty dir: exit code = %d, want %d", code, ExitSuccess)
	}
}
