// ratecontrol drives and inspects the ratelimit engine: token buckets
// refilled by a shared adaptive scheduler, and sliding window limiters.
//
// Usage:
//
//	# Run the configured limiters with metrics and health endpoints
//	ratecontrol run --config /path/to/config.yaml
//
//	# Pace an ad-hoc limiter for ten seconds
//	ratecontrol run --rate 200 --unit s --duration 10s
//
//	# Hammer one bucket from many goroutines and compare with the rate
//	ratecontrol bench --rate 10000 --goroutines 8 --duration 5s
//
//	# Replay a request pattern against a sliding window
//	ratecontrol window --capacity 10 --window 1s --requests 30 --interval 50ms
//
//	# Print the effective configuration
//	ratecontrol config show
//
//	# Show version information
//	ratecontrol version
package main

import "os"

func main() {
	os.Exit(Execute())
}
