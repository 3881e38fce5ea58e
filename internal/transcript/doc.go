// Package transcript turns raw speech-to-text output into ordered, time-coded
// segments with optional speaker attribution.
//
// Recognizer and Diarizer are the capability interfaces implemented by the
// provider clients (WhisperX, remote HTTP ASR). The Segmenter combines them:
// diarization is best effort, so a diarizer failure leaves segments without a
// speaker instead of failing the stage.
package transcript
