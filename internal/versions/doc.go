// Package versions decides which downloaded copy of an episode is
// authoritative when the same episode has been downloaded more than once.
package versions
