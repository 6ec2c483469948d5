package sandbox

import (
	"bytes"
	"sync"
)

// truncationMarker is appended to capped output so readers can tell the
// stream was cut, matching what chat users see.
const truncationMarker = "..."

// boundedBuffer collects container output up to a hard byte cap. Writes
// past the cap are counted and dropped, never buffered. It is safe for
// concurrent use; the log streamer writes while the session reads sizes.
type boundedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	cap     int
	dropped int64
}

func newBoundedBuffer(capBytes int) *boundedBuffer {
	return &boundedBuffer{cap: capBytes}
}

// Write implements io.Writer. It never fails: output capture must not be
// able to abort a run.
func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.cap - b.buf.Len()
	if room <= 0 {
		b.dropped += int64(len(p))
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.dropped += int64(len(p) - room)
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

// Truncated reports whether any bytes were dropped.
func (b *boundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped > 0
}

// Dropped returns how many bytes were discarded past the cap.
func (b *boundedBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// String returns the captured output, suffixed with the truncation marker
// when the cap was hit.
func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dropped > 0 {
		return b.buf.String() + truncationMarker
	}
	return b.buf.String()
}
