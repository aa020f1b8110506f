// Package refresh notifies the search consumer that a rebuilt index is ready.
// Delivery is best effort: failures are logged and reported on the returned
// channel but never fail the indexing run.
package refresh
