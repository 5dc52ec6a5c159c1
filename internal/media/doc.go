// Package media turns source video recordings into audio artifacts suitable
// for speech-to-text upload. Two extraction backends are available: an ffmpeg
// subprocess for arbitrary container formats, and an in-process re-encoder
// for sources that already carry PCM WAV audio.
package media
