package elfreader

import "github.com/go-kit/log"

type Option func(r *Reader)

// WithLogger sets the logger decode progress is reported to.
func WithLogger(l log.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}
