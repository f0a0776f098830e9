package provider

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
)

// MaxLineSize is the longest single line a stream may carry. Longer lines
// are discarded and counted, and reading continues with the next line.
const MaxLineSize = 1 << 20

// readBufferSize is the bufio.Reader size used by ReadLines. Lines longer
// than the buffer are reassembled up to MaxLineSize.
const readBufferSize = 64 * 1024

// streamChannelBuffer is the buffer size for delta channels.
const streamChannelBuffer = 64

// LineDecoder extracts the delta carried by one complete line. ok is false
// when the line carries no text. Returning io.EOF ends the stream cleanly;
// any other error marks the line as malformed and it is skipped.
type LineDecoder func(line string) (delta string, ok bool, err error)

// ReadLines calls fn for every complete line in r, with any trailing "\r"
// removed. Lines split across reads are reassembled before fn sees them.
// Lines longer than MaxLineSize never reach fn; they are counted in
// oversized. Reading stops when fn returns false.
func ReadLines(r io.Reader, fn func(line string) bool) (oversized int, err error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	var line []byte
	discarding := false
	for {
		frag, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !discarding {
				line = append(line, frag...)
				if len(line) > MaxLineSize+2 {
					discarding = true
					line = line[:0]
				}
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return oversized, err
		}
		eof := err != nil

		if discarding {
			discarding = false
			oversized++
		} else {
			line = append(line, frag...)
			text := bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))
			switch {
			case len(text) > MaxLineSize:
				oversized++
			case eof && len(line) == 0:
			default:
				if !fn(string(text)) {
					return oversized, nil
				}
			}
		}
		line = line[:0]
		if eof {
			return oversized, nil
		}
	}
}

// DecodeStream starts a goroutine that reads body line by line, decodes each
// line and delivers the deltas in order on the returned channel. The channel
// is closed when the body is exhausted, the decoder returns io.EOF, a read
// fails or ctx is cancelled. A read failure or cancellation is delivered as
// a final chunk carrying Err. body is always closed.
func DecodeStream(ctx context.Context, id ID, body io.ReadCloser, decode LineDecoder, logger *slog.Logger) <-chan StreamChunk {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ch := make(chan StreamChunk, streamChannelBuffer)
	go pump(ctx, id, body, decode, logger, ch)
	return ch
}

func pump(ctx context.Context, id ID, body io.ReadCloser, decode LineDecoder, logger *slog.Logger, ch chan<- StreamChunk) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// Close body on context cancellation to unblock the reader.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-done:
		}
	}()

	var skipped int
	cancelled := false
	oversized, err := ReadLines(body, func(line string) bool {
		if ctx.Err() != nil {
			cancelled = true
			return false
		}
		if line == "" {
			return true
		}
		delta, ok, err := decode(line)
		switch {
		case errors.Is(err, io.EOF):
			return false
		case err != nil:
			skipped++
			logger.Debug("skipping malformed stream line", "provider", id, "error", err)
			return true
		case !ok:
			return true
		}
		if !sendChunk(ctx, ch, StreamChunk{Delta: delta}) {
			cancelled = true
			return false
		}
		return true
	})

	skipped += oversized
	if skipped > 0 {
		logger.Debug("stream finished with skipped lines", "provider", id, "skipped", skipped)
	}

	// A reader stopped by the cancellation watcher surfaces as a read
	// error on a closed body; report the context error instead.
	// Delivery of the cancellation chunk is best effort: the consumer may
	// already be gone, so never block on it.
	if cancelled || ctx.Err() != nil {
		select {
		case ch <- StreamChunk{Err: ctx.Err()}:
		default:
		}
		return
	}
	if err != nil {
		sendChunk(ctx, ch, StreamChunk{Err: NewNetworkError(id, err)})
	}
}

// sendChunk sends a StreamChunk on ch, respecting context cancellation.
// Returns false if the context was cancelled.
func sendChunk(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
