package api

import "github.com/okian/techrank/pkg/logger"

type options struct {
	logger logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*options)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
