// Package dbfs is the binary store for media content.
//
// Each blob has a name, a hierarchical path such as "/animal/12" and a
// numeric [Ref]. Metadata is kept in a SQLite table and the bytes in a file
// named by a random key under the content directory. Writes go to a temporary
// file that is fsynced and renamed into place, so a reader never sees a
// partial blob. Replacing a blob writes a new content file and swaps the key,
// then removes the old file.
//
// Reads retry on NFS stale file handle errors (see [RetryConfig]).
//
// Usage:
//
//	store, err := dbfs.Open(ctx, "/data/dbfs", dbfs.WithObserver(metrics.NewBlobObserver()))
//	ref, err := store.Put(ctx, "41.jpg", "/animal/12", data)
//	data, err := store.GetID(ctx, ref)
package dbfs
