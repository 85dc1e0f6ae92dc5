package scheduler

// Trigger policy constants
const (
	// HardCeilingChunks bounds worst-case latency between triggers.
	HardCeilingChunks = 5

	// WordCountThreshold forces a trigger once this much substance accumulates.
	WordCountThreshold = 30

	// LowContentWords separates filler-grade chunks from conversational ones.
	LowContentWords = 4

	// DefaultMaxBuffer bounds the accumulation buffer (context window source).
	DefaultMaxBuffer = 20
)
