// Package config loads, normalizes, and validates podsearch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, SUPABASE_URL and SUPABASE_KEY. The Config type centralizes
// every knob the CLI needs so storage, provider credentials and chunking
// limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
