// Package progress reports how far batch runs have got.
//
// An Indicator is anything that can be advanced and closed: a terminal Bar, a
// HubIndicator that turns updates into Events, or a Tee of several. Report and
// Enter attach an indicator to the parallel facility for the duration of a
// scope, so every batch completed by any Runner advances it, and detach and
// close it on the way out whatever happens inside.
//
// Events flow through a non-blocking Hub that batches them on a background
// goroutine and fans them out to pluggable sinks such as logs, Prometheus
// metrics, or persistent storage.
package progress
