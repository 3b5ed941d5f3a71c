// Package metafile reads and appends the sidecar metadata record that
// holds key/value annotations for all objects in one directory.
//
// # Record Structure
//
// A record is a single UTF-8 text file. Every write appends one batch:
// a header line "@<objectName>@<timestamp>" followed by one
// "<key>=<value>" line per property. Existing bytes are never
// rewritten, so earlier assignments stay recoverable by replaying the
// file in order.
//
// # Basic Usage
//
//	s := &metafile.Store{Path: "/data/.annovate"}
//	err := metafile.OpenStore(s)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s.Add(&metafile.Batch{
//	    Object:     "results.csv",
//	    Properties: map[string]string{"description": "Cleaned up data"},
//	})
//	err = s.Write()
//
//	dv, ok := s.Get("results.csv", "description")
//
// # Merge Semantics
//
// Only the most recent assignment per (object, key) is kept in memory.
// An assignment wins if its timestamp is not before the incumbent's,
// whether it comes from the file or from a batch added in-process.
//
// # Concurrency
//
// A Store is meant to live for one process invocation and is not safe
// for concurrent use. Nothing serializes appends from independent
// processes either: simultaneous writers can interleave at the byte
// level and corrupt the line structure.
package metafile
