package enum

// StreamMode selects which fields the feed populates for a subscription.
type StreamMode uint8

const (
	_stream_mode_beg StreamMode = iota
	StreamModeLTP
	StreamModeQuote
	StreamModeDepth
	_stream_mode_end
)

func (m StreamMode) IsAvailable() bool {
	return m > _stream_mode_beg && m < _stream_mode_end
}

func (m StreamMode) String() string {
	switch m {
	case StreamModeLTP:
		return "LTP"
	case StreamModeQuote:
		return "QUOTE"
	case StreamModeDepth:
		return "DEPTH"
	default:
		return "UNKNOWN"
	}
}

// ParseStreamMode maps the wire names onto modes. Unknown names fall back to QUOTE.
func ParseStreamMode(s string) StreamMode {
	switch s {
	case "LTP", "ltp":
		return StreamModeLTP
	case "DEPTH", "depth":
		return StreamModeDepth
	default:
		return StreamModeQuote
	}
}
