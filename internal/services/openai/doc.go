// Package openai provides a minimal client for the hosted audio transcription
// API. It sends one multipart request per call and leaves retry policy to the
// transcription client.
package openai
