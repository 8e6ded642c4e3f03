package dedupe

// Option configures the in-memory Deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the number of remembered keys. A value <= 0 disables
// eviction.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
