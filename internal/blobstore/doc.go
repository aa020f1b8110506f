// Package blobstore defines the key/value Store the pipeline persists to and
// ships two backends: Local (a directory tree with atomic writes) and Supabase
// (a storage bucket). Create and Open add streaming on top of any Store so the
// index serializer can stay within a bounded memory budget where the backend
// supports it.
package blobstore
