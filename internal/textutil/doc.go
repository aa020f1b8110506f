// Package textutil provides text normalization helpers shared by the episode
// naming, manifest matching, and search tokenizer code: title slugs, Unicode
// diacritic folding, and storage-safe tokens.
package textutil
