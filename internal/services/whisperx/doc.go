// Package whisperx runs WhisperX through uvx as the local speech recognizer.
//
// Recordings are first normalized to mono 16kHz WAV with ffmpeg, then
// transcribed with sentence-level segments. When diarization is enabled and a
// Hugging Face token is configured, WhisperX also labels each segment with a
// speaker, so no separate diarizer is needed.
//
// Service implements transcript.Recognizer.
package whisperx
