package ingest

import "github.com/okian/techrank/pkg/logger"

// Option configures a Consumer.
type Option func(*Consumer)

// WithWorkers sets how many goroutines store messages.
func WithWorkers(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBuffer sets how many fetched messages may wait for a worker.
func WithBuffer(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithLogger sets the consumer logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}
