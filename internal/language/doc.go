// Package language normalizes language hints before they are forwarded to
// the transcription backend, accepting ISO 639-1/639-2 codes and common full
// word forms.
package language
