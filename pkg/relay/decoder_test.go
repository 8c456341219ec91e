package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"scribe-hq/hermes/pkg/providers"
)

// chunkReader yields each chunk in a separate Read call, then EOF.
type chunkReader struct {
	chunks [][]byte
	index  int
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.index])
	if n < len(r.chunks[r.index]) {
		r.chunks[r.index] = r.chunks[r.index][n:]
		return n, nil
	}
	r.index++
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

// decode runs the decoder over the chunks and collects results.
func decode(t *testing.T, chunks ...[]byte) (string, []string, *providers.TokenUsage) {
	t.Helper()

	reader := &chunkReader{chunks: chunks}
	var fragments []string
	var usage *providers.TokenUsage

	dec := NewDecoder(reader)
	err := dec.Run(context.Background(),
		func(content string) { fragments = append(fragments, content) },
		func(u providers.TokenUsage) { usage = &u },
	)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reader.closed {
		t.Error("decoder should close the reader")
	}

	return strings.Join(fragments, ""), fragments, usage
}

func TestDecoderContentAndUsage(t *testing.T) {
	wire := []byte("Hello world\n__USAGE_DATA__:{\"prompt_tokens\":5,\"completion_tokens\":10,\"total_tokens\":15}")

	content, _, usage := decode(t, wire)

	if content != "Hello world" {
		t.Errorf("content = %q, want %q", content, "Hello world")
	}
	if usage == nil {
		t.Fatal("usage record should be delivered")
	}
	if usage.PromptTokens != 5 || usage.CompletionTokens != 10 || usage.TotalTokens != 15 {
		t.Errorf("usage = %+v, want {5 10 15}", usage)
	}
}

func TestDecoderContentOnly(t *testing.T) {
	content, _, usage := decode(t, []byte("Hello"), []byte(" world"))

	if content != "Hello world" {
		t.Errorf("content = %q, want %q", content, "Hello world")
	}
	if usage != nil {
		t.Errorf("usage = %+v, want nil", usage)
	}
}

func TestDecoderPreservesContentNewlines(t *testing.T) {
	// Only the single newline framing the marker is stripped.
	wire := []byte("line one\n\nline two\n\n__USAGE_DATA__:{\"prompt_tokens\":1,\"completion_tokens\":2,\"total_tokens\":3}")

	content, _, usage := decode(t, wire)

	if content != "line one\n\nline two\n" {
		t.Errorf("content = %q, want %q", content, "line one\n\nline two\n")
	}
	if usage == nil {
		t.Error("usage record should be delivered")
	}
}

func TestDecoderSplitInvariance(t *testing.T) {
	// Multi-byte characters and the marker must decode identically no
	// matter where the chunk boundaries fall.
	wire := []byte("你好，世界 héllo\n__USAGE_DATA__:{\"prompt_tokens\":7,\"completion_tokens\":3,\"total_tokens\":10}")
	wantContent := "你好，世界 héllo"

	for split := 1; split < len(wire); split++ {
		t.Run(fmt.Sprintf("split_at_%d", split), func(t *testing.T) {
			first := append([]byte(nil), wire[:split]...)
			second := append([]byte(nil), wire[split:]...)

			content, _, usage := decode(t, first, second)

			if content != wantContent {
				t.Errorf("content = %q, want %q", content, wantContent)
			}
			if usage == nil {
				t.Fatal("usage record should be delivered")
			}
			if usage.TotalTokens != 10 {
				t.Errorf("total tokens = %d, want 10", usage.TotalTokens)
			}
		})
	}
}

func TestDecoderSplitInvarianceBytewise(t *testing.T) {
	wire := []byte("水\n__USAGE_DATA__:{\"prompt_tokens\":1,\"completion_tokens\":1,\"total_tokens\":2}")

	chunks := make([][]byte, 0, len(wire))
	for _, b := range wire {
		chunks = append(chunks, []byte{b})
	}

	content, _, usage := decode(t, chunks...)

	if content != "水" {
		t.Errorf("content = %q, want %q", content, "水")
	}
	if usage == nil || usage.TotalTokens != 2 {
		t.Errorf("usage = %+v, want total 2", usage)
	}
}

func TestDecoderMarkerNeverEmittedAsContent(t *testing.T) {
	// A partial marker at end of chunk must not leak into content
	// before the rest arrives.
	content, _, usage := decode(t,
		[]byte("answer\n__USAGE_"),
		[]byte("DATA__:{\"prompt_tokens\":1,\"completion_tokens\":1,\"total_tokens\":2}"),
	)

	if content != "answer" {
		t.Errorf("content = %q, want %q", content, "answer")
	}
	if usage == nil {
		t.Error("usage record should be delivered")
	}
}

func TestDecoderFalseMarkerPrefixFlushedAtEOF(t *testing.T) {
	// A suffix that looks like the start of the marker but never
	// completes is content after all.
	content, _, usage := decode(t, []byte("tail\n__USAGE"))

	if content != "tail\n__USAGE" {
		t.Errorf("content = %q, want %q", content, "tail\n__USAGE")
	}
	if usage != nil {
		t.Errorf("usage = %+v, want nil", usage)
	}
}

func TestDecoderMalformedUsageSwallowed(t *testing.T) {
	content, _, usage := decode(t, []byte("ok\n__USAGE_DATA__:{not json"))

	if content != "ok" {
		t.Errorf("content = %q, want %q", content, "ok")
	}
	if usage != nil {
		t.Errorf("usage = %+v, want nil for malformed payload", usage)
	}
}

func TestDecoderErrorEscapeAfterUsageIsContent(t *testing.T) {
	wire := []byte("partial\n__USAGE_DATA__:{\"prompt_tokens\":1,\"completion_tokens\":1,\"total_tokens\":2}\n\nERROR: upstream failed")

	content, _, usage := decode(t, wire)

	if !strings.Contains(content, "\n\nERROR: upstream failed") {
		t.Errorf("content = %q, want it to carry the error escape verbatim", content)
	}
	if !strings.HasPrefix(content, "partial") {
		t.Errorf("content = %q, want it to start with the delivered text", content)
	}
	if usage == nil {
		t.Error("usage record should be delivered before the escape")
	}
}

func TestDecoderErrorEscapeWithoutUsageIsContent(t *testing.T) {
	content, _, _ := decode(t, []byte("so far"), []byte("\n\nERROR: 网络连接错误"))

	if content != "so far\n\nERROR: 网络连接错误" {
		t.Errorf("content = %q, want escape delivered as plain content", content)
	}
}

func TestDecoderCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &chunkReader{chunks: [][]byte{[]byte("data")}}
	dec := NewDecoder(reader)

	err := dec.Run(ctx, func(string) {}, func(providers.TokenUsage) {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if !reader.closed {
		t.Error("decoder should close the reader on cancellation")
	}
}

func TestDecoderEventsChannel(t *testing.T) {
	wire := []byte("a b c\n__USAGE_DATA__:{\"prompt_tokens\":1,\"completion_tokens\":2,\"total_tokens\":3}")

	dec := NewDecoder(&chunkReader{chunks: [][]byte{wire}})

	var content strings.Builder
	var usage *providers.TokenUsage
	for ev := range dec.Events(context.Background()) {
		if ev.Usage != nil {
			if usage != nil {
				t.Error("usage should be delivered at most once")
			}
			usage = ev.Usage
			continue
		}
		if usage != nil {
			t.Error("content should never follow the usage event for a well-formed stream")
		}
		content.WriteString(ev.Content)
	}

	if content.String() != "a b c" {
		t.Errorf("content = %q, want %q", content.String(), "a b c")
	}
	if usage == nil || usage.TotalTokens != 3 {
		t.Errorf("usage = %+v, want total 3", usage)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame, err := EncodeUsage(&providers.TokenUsage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46})
	if err != nil {
		t.Fatalf("EncodeUsage() error = %v", err)
	}

	wire := append([]byte("streamed text"), frame...)
	content, _, usage := decode(t, wire)

	if content != "streamed text" {
		t.Errorf("content = %q, want %q", content, "streamed text")
	}
	if usage == nil || usage.PromptTokens != 12 || usage.CompletionTokens != 34 || usage.TotalTokens != 46 {
		t.Errorf("usage = %+v, want {12 34 46}", usage)
	}
}
