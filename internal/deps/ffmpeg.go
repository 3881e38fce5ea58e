package deps

import (
	"os"
	"os/exec"
	"strings"
)

// FFmpegEnv overrides the ffmpeg binary used for audio normalization.
const FFmpegEnv = "ECHOPRESS_FFMPEG"

// FFprobeEnv overrides the ffprobe binary used to inspect recordings.
const FFprobeEnv = "ECHOPRESS_FFPROBE"

// ResolveFFmpegPath returns the ffmpeg binary to execute: the ECHOPRESS_FFMPEG
// override when set, otherwise the PATH match, otherwise the bare name so the
// failure surfaces when the command runs.
func ResolveFFmpegPath() string {
	return resolveBinary(FFmpegEnv, "ffmpeg")
}

// ResolveFFprobePath mirrors ResolveFFmpegPath for ffprobe.
func ResolveFFprobePath() string {
	return resolveBinary(FFprobeEnv, "ffprobe")
}

func resolveBinary(env, name string) string {
	if override := strings.TrimSpace(os.Getenv(env)); override != "" {
		return override
	}
	if resolved, err := exec.LookPath(name); err == nil {
		return resolved
	}
	return name
}
