package enum

// FeedState is the feed connection lifecycle.
type FeedState uint8

const (
	FeedDisconnected FeedState = iota
	FeedConnecting
	FeedSubscribing
	FeedStreaming
)

func (s FeedState) String() string {
	switch s {
	case FeedDisconnected:
		return "disconnected"
	case FeedConnecting:
		return "connecting"
	case FeedSubscribing:
		return "subscribing"
	case FeedStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}
