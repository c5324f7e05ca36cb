package core

import "sync"

// ── Registry ──────────────────────────────────────────────────────────────────

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu       sync.RWMutex
	decoders map[Format]Decoder
	encoder  Encoder
}

// NewRegistry returns an empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		decoders: make(map[Format]Decoder),
	}
}

func (r *DefaultRegistry) RegisterDecoder(f Format, d Decoder) {
	r.mu.Lock()
	r.decoders[f] = d
	r.mu.Unlock()
}

// DecoderFor returns the decoder registered for f.  When nothing is
// registered for f, the first decoder that claims it via CanDecode wins.
func (r *DefaultRegistry) DecoderFor(f Format) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.decoders[f]; ok {
		return d, true
	}
	for _, d := range r.decoders {
		if d.CanDecode(f) {
			return d, true
		}
	}
	return nil, false
}

func (r *DefaultRegistry) SetEncoder(e Encoder) {
	r.mu.Lock()
	r.encoder = e
	r.mu.Unlock()
}

func (r *DefaultRegistry) Encoder() Encoder {
	r.mu.RLock()
	e := r.encoder
	r.mu.RUnlock()
	return e
}
