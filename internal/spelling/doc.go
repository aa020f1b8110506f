// Package spelling applies deterministic word corrections to transcripts.
package spelling
