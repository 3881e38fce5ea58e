// Package recording resolves recording references into local audio files and
// loads voice profiles.
//
// A reference is a local path, a file:// URL or an http(s) URL. Remote audio
// is downloaded into the staging directory. Every reference must carry one of
// the configured audio extensions. Voice profiles are YAML files in the
// profiles directory holding tone, style_guide, banned_terms and an optional
// outline.
package recording
