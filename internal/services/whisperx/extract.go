package whisperx

import "fmt"

// extractArgs builds the ffmpeg arguments that turn any supported recording
// into mono 16kHz PCM WAV.
func extractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}

const sampleRate = 16000
