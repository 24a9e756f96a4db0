// Package http provides the HTTP client shared by hub lookups and file
// transfers.
//
// This package handles:
//   - A browser-style User-Agent on every request
//   - HEAD probes for remote file sizes (failures degrade to size 0)
//   - JSON API requests with a bounded timeout
//   - Open-ended body streams with Range support for resuming
//
// Metadata requests carry end-to-end deadlines; streams deliberately do
// not. A stream is bounded only by the time to first byte
// (ResponseHeaderTimeout) and the caller's context, so multi-hour
// transfers are never cut off mid-body.
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Size probe; 0 means unknown
//	size := client.ProbeSize(ctx, url)
//
//	// Resume a download from byte 4096
//	resp, err := client.Stream(ctx, url, 4096)
//	defer resp.Body.Close()
package http
