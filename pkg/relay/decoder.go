package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"unicode/utf8"

	"scribe-hq/hermes/pkg/providers"
)

// Event is one decoded item from a relay stream: either a content
// fragment or the usage record, in arrival order.
type Event struct {
	// Content is a fragment of model output. Concatenating the Content
	// of all events in order reconstructs the full output.
	Content string

	// Usage is the accounting record, delivered at most once, after all
	// content events.
	Usage *providers.TokenUsage
}

// Decoder consumes a relay byte stream and reconstructs content
// fragments and the usage record. It owns its carry-over state for the
// lifetime of one response; create a new Decoder per stream.
//
// The decoder never emits bytes it cannot yet classify: an incomplete
// UTF-8 sequence or a partial usage-marker frame at the end of a read
// is held back until the next read (or end of stream) disambiguates
// it, so decoding is invariant under how the stream is split into
// chunks.
type Decoder struct {
	r io.Reader

	// pending holds bytes read but not yet emitted
	pending []byte

	// markerSeen flips once the usage marker has been consumed; every
	// byte after it belongs to the usage payload
	markerSeen bool
}

// NewDecoder creates a decoder over a relay byte stream. If r is an
// io.Closer it is closed when decoding finishes, on every path.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Run reads the stream to completion, invoking onContent for each
// content fragment and onUsage for the usage record, in arrival order.
// A malformed usage payload is logged and swallowed; the terminal
// error escape is delivered as plain content. Caller cancellation
// returns ctx.Err().
func (d *Decoder) Run(ctx context.Context, onContent func(string), onUsage func(providers.TokenUsage)) error {
	defer d.release()

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := d.r.Read(buf)
		if n > 0 {
			d.pending = append(d.pending, buf[:n]...)
			d.drain(onContent)
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			d.finish(onContent, onUsage)
			return nil
		}
	}
}

// Events decodes the stream into a channel, closed on completion. A
// read failure or cancellation ends the stream silently after the
// events decoded so far; callers needing the error should use Run.
func (d *Decoder) Events(ctx context.Context) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		_ = d.Run(ctx,
			func(content string) {
				select {
				case events <- Event{Content: content}:
				case <-ctx.Done():
				}
			},
			func(usage providers.TokenUsage) {
				select {
				case events <- Event{Usage: &usage}:
				case <-ctx.Done():
				}
			},
		)
	}()
	return events
}

// drain emits every pending byte that is safely classified as content,
// and consumes the usage marker when it appears.
func (d *Decoder) drain(onContent func(string)) {
	if d.markerSeen {
		// Everything after the marker accumulates until end of stream.
		return
	}

	if i := bytes.Index(d.pending, []byte(UsageMarker)); i >= 0 {
		content := d.pending[:i]
		// The newline before the marker is frame framing, not content.
		content = bytes.TrimSuffix(content, []byte("\n"))
		if len(content) > 0 {
			onContent(string(content))
		}
		d.pending = append([]byte(nil), d.pending[i+len(UsageMarker):]...)
		d.markerSeen = true
		return
	}

	hold := partialFrameSuffix(d.pending)
	emit := d.pending[:len(d.pending)-hold]
	if tail := incompleteRuneTail(emit); tail > 0 {
		hold += tail
		emit = emit[:len(emit)-tail]
	}

	if len(emit) > 0 {
		onContent(string(emit))
		d.pending = append([]byte(nil), d.pending[len(emit):]...)
	}
}

// finish flushes held-back bytes at end of stream: before the marker
// they are content after all; after it they are the usage payload.
func (d *Decoder) finish(onContent func(string), onUsage func(providers.TokenUsage)) {
	if !d.markerSeen {
		if len(d.pending) > 0 {
			onContent(string(d.pending))
			d.pending = nil
		}
		return
	}

	dec := json.NewDecoder(bytes.NewReader(d.pending))
	var usage providers.TokenUsage
	if err := dec.Decode(&usage); err != nil {
		slog.Warn("failed to parse usage record", "error", err, "payload_len", len(d.pending))
		return
	}
	onUsage(usage)

	// Anything after the usage JSON (a trailing error escape) is content.
	rest, _ := io.ReadAll(dec.Buffered())
	if len(rest) > 0 {
		onContent(string(rest))
	}
	d.pending = nil
}

// release closes the underlying source when it is closable. Called on
// every exit path so the stream handle is never leaked.
func (d *Decoder) release() {
	if closer, ok := d.r.(io.Closer); ok {
		_ = closer.Close()
	}
}

// partialFrameSuffix returns the length of the longest suffix of b
// that could still grow into the usage-marker frame. Those bytes must
// not be emitted as content until more input decides them.
func partialFrameSuffix(b []byte) int {
	max := len(usageFrame) - 1
	if max > len(b) {
		max = len(b)
	}
	for l := max; l > 0; l-- {
		suffix := b[len(b)-l:]
		if bytes.Equal(suffix, []byte(usageFrame)[:l]) || (l < len(UsageMarker) && bytes.Equal(suffix, []byte(UsageMarker)[:l])) {
			return l
		}
	}
	return 0
}

// incompleteRuneTail returns the number of trailing bytes that form an
// incomplete UTF-8 sequence, to be carried into the next read.
func incompleteRuneTail(b []byte) int {
	// A multi-byte sequence is at most utf8.UTFMax bytes; only the tail
	// can be incomplete.
	for tail := 1; tail <= utf8.UTFMax && tail <= len(b); tail++ {
		c := b[len(b)-tail]
		if c < utf8.RuneSelf {
			return 0 // last lead byte is ASCII, nothing pending
		}
		if c&0xC0 == 0xC0 { // lead byte of a multi-byte sequence
			if utf8.FullRune(b[len(b)-tail:]) {
				return 0
			}
			return tail
		}
		// continuation byte, keep scanning backwards
	}
	return 0
}
