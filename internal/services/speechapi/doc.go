// Package speechapi talks to remote speech services over HTTP.
//
// The ASR endpoint accepts a multipart upload at <asr_url>/transcribe and
// returns {language, segments:[{start, end, text, speaker?, confidence?}]}.
// The diarization endpoint accepts the same upload at
// <diarization_url>/diarize and returns {segments:[{start, end, speaker}]}.
// Client implements transcript.Recognizer and transcript.Diarizer.
package speechapi
