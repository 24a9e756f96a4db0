// Package testutils provides shared HTTP fixtures for download tests.
package testutils

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// GenerateTestData generates deterministic test data of the given size.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// StartFileServer starts an HTTP server serving files keyed by path
// ("/name"), with HEAD metadata and open-ended range support. It records
// GET counts per path so tests can assert how many transfers actually
// happened.
func StartFileServer(t *testing.T, files map[string][]byte) (*httptest.Server, *RequestCounter) {
	t.Helper()

	counter := &RequestCounter{counts: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		size := int64(len(data))

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		counter.inc(r.URL.Path)

		start, end, ok := ParseRange(r.Header.Get("Range"), size)
		if !ok {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Write(data)
			return
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	t.Cleanup(server.Close)
	return server, counter
}

// RequestCounter counts GET requests per path.
type RequestCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *RequestCounter) inc(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[path]++
}

// Gets returns how many GET requests the path has received.
func (c *RequestCounter) Gets(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[path]
}

// ParseRange parses a "bytes=start-" or "bytes=start-end" header against
// the resource size. ok is false when no usable range was requested.
func ParseRange(header string, size int64) (start, end int64, ok bool) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	from, to, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}

	end = size - 1
	if to != "" {
		end, err = strconv.ParseInt(to, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true
}

// StartFlakyServer starts a server for data that truncates the response
// body partway through for the first `failures` GET requests, then
// behaves normally. Range requests are honored, so a resuming client
// picks up exactly where the last truncation left it. The counter
// records every GET, truncated or not.
func StartFlakyServer(t *testing.T, data []byte, failures int) (*httptest.Server, *RequestCounter) {
	t.Helper()

	var (
		mu     sync.Mutex
		failed int
	)
	counter := &RequestCounter{counts: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size := int64(len(data))

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		counter.inc(r.URL.Path)

		start, end, ok := ParseRange(r.Header.Get("Range"), size)
		if !ok {
			start, end = 0, size-1
		} else {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		}
		body := data[start : end+1]

		mu.Lock()
		truncate := failed < failures
		if truncate {
			failed++
		}
		mu.Unlock()

		// Declaring the full length and writing half of it makes the
		// server close the connection short, which the client sees as
		// a truncated stream.
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if ok {
			w.WriteHeader(http.StatusPartialContent)
		}
		if truncate {
			w.Write(body[:len(body)/2])
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server, counter
}

// StartDripServer starts a server that streams data in small flushed
// pieces with a delay between them, giving tests time to pause or cancel
// mid-transfer. Range requests are honored.
func StartDripServer(t *testing.T, data []byte, piece int, interval time.Duration) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size := int64(len(data))

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}

		start, end, ok := ParseRange(r.Header.Get("Range"), size)
		if !ok {
			start, end = 0, size-1
		} else {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		}
		body := data[start : end+1]

		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if ok {
			w.WriteHeader(http.StatusPartialContent)
		}

		flusher, _ := w.(http.Flusher)
		for off := 0; off < len(body); off += piece {
			top := off + piece
			if top > len(body) {
				top = len(body)
			}
			if _, err := w.Write(body[off:top]); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(interval)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// AssertFileEquals fails the test unless the file at path holds exactly
// want.
func AssertFileEquals(t *testing.T, path string, want []byte) {
	t.Helper()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(got) != len(want) {
		t.Fatalf("%s: got %d bytes, want %d", path, len(got), len(want))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("%s: content mismatch", path)
	}
}
