// Package language normalizes the language hints attached to submissions
// before they reach a speech recognizer.
//
// Recognizers want bare ISO 639-1 codes ("en", "de"). Users type anything
// from BCP 47 tags ("en-US") to ISO 639-2 codes ("eng", "ger") to English
// words ("german"); Normalize folds all of them to the base code.
package language
