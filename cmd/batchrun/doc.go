// Command batchrun hashes every regular file under a directory on a pool of
// parallel workers while reporting progress to the terminal, the logs,
// Prometheus, and a run repository.
//
// Usage:
//
//	batchrun -config batchlog.yaml [dir]
//
// dir defaults to the working directory. When output.uri is set, a JSON
// manifest of the digests is written to a local directory or a gs:// bucket.
package main
