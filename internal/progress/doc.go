// Package progress provides byte-size formatting and console rendering of
// transfer events.
//
// Transfers emit Event values on a channel; the Renderer drains that channel
// and writes human-readable output. Status events become standalone lines,
// progress events rewrite a single line in place. Because sends block when
// the channel is full, a slow consumer applies backpressure to the transfer
// instead of losing events.
//
// # Usage
//
//	events := make(chan progress.Event, 64)
//	renderer := progress.NewRenderer(progress.Options{})
//	renderer.Start(events)
//
//	// ... transfers send on events ...
//
//	close(events)
//	renderer.Wait()
//
// # Output Format
//
//	[hfdl] model.safetensors: resuming download
//	[hfdl] model.safetensors: 45.2% | 1.13 GB / 2.50 GB | 12.40 MB/s
//	[hfdl] Transferred 1.37 GB in 1m 53s (12.41 MB/s)
package progress
