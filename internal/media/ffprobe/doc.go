// Package ffprobe inspects recordings with ffprobe's JSON output so the
// pipeline can reject files without an audio stream and learn their length
// before transcription starts.
package ffprobe
