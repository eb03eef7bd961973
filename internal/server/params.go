package server

import "strings"

// Connection modes announced by peers. The relay does not enforce them.
const (
	ModeController = "controller"
	ModeReceptor   = "receptor"
	ModeUnknown    = "unknown"
)

// DefaultChannel is used when a peer does not name a channel.
const DefaultChannel = "default"

// ParseConnectionParams extracts the channel and mode from a raw request
// target such as "/?channel=robot-1&mode=receptor". Values are taken
// verbatim without percent-decoding; tokens lacking '=' are skipped and the
// last occurrence of a key wins.
func ParseConnectionParams(target string) (channel, mode string) {
	channel, mode = DefaultChannel, ModeUnknown

	_, query, found := strings.Cut(target, "?")
	if !found {
		return channel, mode
	}

	for _, token := range strings.Split(query, "&") {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		switch key {
		case "channel":
			channel = value
		case "mode":
			mode = value
		}
	}

	if channel == "" {
		channel = DefaultChannel
	}
	if mode == "" {
		mode = ModeUnknown
	}
	return channel, mode
}
