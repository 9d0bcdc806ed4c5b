package capture

// Framer re-blocks device periods of arbitrary length into fixed-size frames.
// Hardware rarely delivers exactly [audio.FrameSize] samples per callback, so
// device backends write whatever they receive and the Framer emits one call
// per complete frame, carrying the remainder over to the next write.
//
// The slice passed to emit is reused; emit must not retain it.
// Not safe for concurrent use.
type Framer struct {
	size int
	buf  []float32
	emit func([]float32)
}

// NewFramer returns a Framer that calls emit with frames of size samples.
func NewFramer(size int, emit func([]float32)) *Framer {
	if size <= 0 {
		panic("capture: framer size must be positive")
	}
	return &Framer{
		size: size,
		buf:  make([]float32, 0, size),
		emit: emit,
	}
}

// Write appends samples and emits every complete frame.
func (f *Framer) Write(samples []float32) {
	for len(samples) > 0 {
		n := min(f.size-len(f.buf), len(samples))
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]
		if len(f.buf) == f.size {
			f.emit(f.buf)
			f.buf = f.buf[:0]
		}
	}
}

// Pending returns the number of buffered samples not yet emitted.
func (f *Framer) Pending() int { return len(f.buf) }

// Reset discards buffered samples.
func (f *Framer) Reset() { f.buf = f.buf[:0] }
