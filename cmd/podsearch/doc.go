// Package main hosts the podsearch CLI.
//
// The Cobra command tree wires configuration, logging, the blob store and the
// run ledger into the pipeline stages (transcribe, index, correct) and offers
// maintenance commands for manifests, locks, run history and ad-hoc search
// against a persisted index. Stage logic lives in internal/pipeline; commands
// here only assemble collaborators and render results.
package main
