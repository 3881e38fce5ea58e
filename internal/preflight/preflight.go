package preflight

import (
	"context"

	"echopress/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Draft directory", cfg.Paths.DraftDir),
	}
	if cfg.Paths.ProfilesDir != "" {
		results = append(results, CheckDirectoryAccess("Profiles directory", cfg.Paths.ProfilesDir))
	}

	results = append(results, CheckLLM(ctx, "Article LLM", cfg.GetLLM()))

	if cfg.Transcription.Provider == "http" {
		results = append(results, CheckASR(ctx, cfg.Transcription.ASRURL))
	}
	for _, dep := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: dep.Name, Passed: !dep.Blocking(), Detail: dep.Detail}
		if dep.Available {
			result.Detail = dep.Command
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
