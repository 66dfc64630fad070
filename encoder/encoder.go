// Package encoder turns captured PCM into the formats the interview
// server accepts: WAV for answer blobs, FLAC for the continuous
// session recording.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)
