// Package memory configures GOMEMLIMIT from the container limit and applies
// backpressure to the bulk rescale jobs.
//
// Call [ConfigureFromEnv] early in main:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go setting; when present it is left alone.
//   - MEMORY_LIMIT: container memory limit in bytes, usually from the
//     Kubernetes Downward API (resources.limits.memory).
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, default 0.85.
//     Lower it when the PDF compactor or libvips need more headroom.
//
// A [Monitor] samples the heap and pauses callers of [Monitor.Wait] while
// usage is above the critical mark, resuming once it falls under the high
// water mark. The bulk jobs wait before every item:
//
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
//
//	for _, item := range items {
//	    if err := mon.Wait(ctx); err != nil {
//	        return err
//	    }
//	    process(item)
//	}
package memory
