// Package whisperx runs WhisperX locally through uvx as a speech-to-text
// provider.
//
// Each call transcribes one audio chunk into a private output directory and
// returns the generated SRT text. The subprocess runs in its own process
// group so that a cancelled or timed-out call terminates WhisperX together
// with the Python workers it spawns.
//
// Configuration options (model, CUDA, language, VAD method) are passed via Config.
package whisperx
