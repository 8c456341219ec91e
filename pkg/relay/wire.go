// Package relay implements the byte protocol between Hermes and its
// callers: a chunked text stream of raw model output, multiplexed with
// a single usage accounting record and, on mid-stream failure, a
// terminal error escape.
//
// Wire format, in order:
//
//	<content bytes>*
//	["\n__USAGE_DATA__:" <compact JSON usage>]
//	["\n\nERROR: " <classified message>]
//
// The usage marker appears at most once, after all content. The error
// escape appears only when the upstream failed after streaming began;
// on cancellation neither is written.
package relay

import (
	"encoding/json"
	"fmt"

	"scribe-hq/hermes/pkg/providers"
)

const (
	// UsageMarker introduces the usage accounting record on the wire.
	UsageMarker = "__USAGE_DATA__:"

	// ErrorEscapePrefix introduces the terminal error escape. It is
	// ordinary content to the decoder; consumers recognize the prefix.
	ErrorEscapePrefix = "\n\nERROR: "
)

// usageFrame is the full framing of the usage record: a newline
// separating it from content, then the marker.
const usageFrame = "\n" + UsageMarker

// EncodeUsage serializes a usage record with its wire framing.
func EncodeUsage(usage *providers.TokenUsage) ([]byte, error) {
	payload, err := json.Marshal(usage)
	if err != nil {
		return nil, fmt.Errorf("failed to encode usage record: %w", err)
	}
	return append([]byte(usageFrame), payload...), nil
}

// EncodeError formats the terminal error escape for a classified
// message.
func EncodeError(message string) []byte {
	return []byte(ErrorEscapePrefix + message)
}
