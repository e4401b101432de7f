// Package parallel runs independent tasks on a bounded worker pool.
//
// A Runner splits its tasks into fixed-size batches, feeds them through a
// bounded queue to a fixed number of workers, and reports every batch that
// completes. Reports go first to callbacks injected into the Runner and then to
// process-wide observers installed with Observe, which is how progress
// indicators follow runs they did not start.
package parallel
