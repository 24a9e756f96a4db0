// Package config defines configuration structures for the hfdl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (HFDL_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    URL       string
//	    Dir       string
//	    Mirror    string
//	    UserAgent string
//	    ChunkSize int
//	    Progress  bool
//	    Retry     RetryConfig
//	    Timeouts  TimeoutConfig
//	}
//
//	type RetryConfig struct {
//	    Attempts int
//	    Wait     time.Duration
//	}
//
//	type TimeoutConfig struct {
//	    Probe          time.Duration
//	    List           time.Duration
//	    ResponseHeader time.Duration
//	}
package config
