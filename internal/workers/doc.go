/*
Package workers sizes and runs the worker pools of the bulk rescale jobs.

Go sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU still
reports the host. Sizing pools from GOMAXPROCS keeps a pod limited to two
CPUs from starting sixty-four image scalers:

	n := workers.ForCPU(8)   // image scaling
	n := workers.ForMixed(8) // PDF compaction through an external tool

Operators can pin the count with MEDIA_WORKERS:

	env:
	- name: MEDIA_WORKERS
	  value: "4"

[Run] feeds indexes to a fixed number of goroutines and stops handing out
work when the context ends:

	err := workers.Run(ctx, n, len(records), func(ctx context.Context, i int) {
	    rescale(ctx, records[i])
	})
*/
package workers
