// Package services defines shared utilities consumed by the pipeline stages
// and the capability providers they call.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, recording identities, stage names,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that map failures onto the
//     run error taxonomy (InputError, ProviderTimeout, ProviderFailure,
//     GroundingViolation, PolicyViolation).
//
// Provider clients live in subpackages (llm, whisperx, speechapi).
package services
