// Package chunking splits long or large audio files into contiguous chunks
// that fit provider upload limits.
//
// Spans is the pure boundary calculation; Planner measures a file (stat for
// size, ffprobe or the WAV header for duration) and cuts chunks with ffmpeg
// into a process-scoped temporary directory. Callers delete each chunk right
// after it is transcribed and remove the directory when the file is done.
package chunking
