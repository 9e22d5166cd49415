// Package notifier delivers notifications to named chat channels.
//
// Callers enqueue a transport.Notification addressed by channel name and
// return immediately. A small worker pool resolves the name through a
// transport.Directory, paces sends with a token bucket and hands the text to
// the transport adapter.
//
// # Failure handling
//
// Delivery is fire-and-forget. A failed send is logged and published on the
// event bus; it is never retried. An unknown destination is logged as
// "destination not found" and dropped.
//
// # History
//
// For operator visibility the service keeps a small in-memory history of
// recent delivery outcomes.
package notifier
