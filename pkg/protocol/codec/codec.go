// Package codec provides the payload codecs used around the envelope:
// protobuf for wire frames, CBOR for parameter bodies, JSON for tooling.
package codec

// Codec marshals typed payload bodies. Implementations must be
// deterministic so repeated encodes of the same body are byte-identical.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs.
type Registry struct{ byType map[string]Codec }

// NewRegistry returns a registry preloaded with every built-in codec.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	r.Register(Proto())
	r.Register(CBOR())
	return r
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns the codec for a content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }
