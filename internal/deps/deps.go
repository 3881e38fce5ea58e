package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external binary a transcription provider shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement together with the result of looking it up.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Blocking reports whether the missing binary prevents runs from starting.
func (s Status) Blocking() bool {
	return !s.Available && !s.Optional
}

// ForProvider lists the binaries the named transcription provider needs.
// ffmpeg and uvx are only required when WhisperX runs locally. ffprobe is
// always optional since a failed probe leaves the duration unknown.
func ForProvider(provider string) []Requirement {
	local := strings.EqualFold(strings.TrimSpace(provider), "whisperx")
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ResolveFFmpegPath(),
			Description: "Normalizes recordings to 16kHz WAV for WhisperX",
			Optional:    !local,
		},
		{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Required for WhisperX-driven transcription",
			Optional:    !local,
		},
		{
			Name:        "FFprobe",
			Command:     ResolveFFprobePath(),
			Description: "Reads recording duration and rejects files without audio",
			Optional:    true,
		},
	}
}

// Check looks up every requirement on PATH.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results = append(results, lookup(req))
	}
	return results
}

func lookup(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	if _, err := exec.LookPath(req.Command); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	return status
}

// Blocking filters statuses down to the missing required binaries.
func Blocking(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if status.Blocking() {
			out = append(out, status)
		}
	}
	return out
}
