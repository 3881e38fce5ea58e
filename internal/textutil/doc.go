// Package textutil holds the transcript text helpers shared by topic
// detection and grounding retrieval: term fingerprints with IDF weighting,
// and the slugs used in draft identifiers and staged file names.
//
// Tokenization lowercases text, splits on anything that is not a letter or
// digit, and filters stop words plus tokens shorter than three characters.
package textutil
