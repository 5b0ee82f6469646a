package transfer

const (
	// ChannelLabel names the ordered, reliable data channel transfers use.
	ChannelLabel = "fileTransfer"

	// ChunkSize is the largest binary frame the sender emits.
	ChunkSize = 64 * 1024

	// HighWaterMark is the buffered amount above which the sender pauses.
	HighWaterMark = 16 * 1024 * 1024

	// LowWaterMark is the buffered amount the sender waits for before it
	// resumes. It is also the channel's low threshold.
	LowWaterMark = 1 * 1024 * 1024
)

// Control frame types.
const (
	FrameMetadata  = "metadata"
	FrameEOF       = "eof"
	FrameClipboard = "clipboard"
	FrameNote      = "note"
)

// DefaultMimeType is used when the sender cannot tell.
const DefaultMimeType = "application/octet-stream"
