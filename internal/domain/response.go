package domain

// ResponseOptions tune how a markdown reply is delivered.
type ResponseOptions struct {
	Muted bool
	Extra map[string]any
}

// ResponseOption mutates ResponseOptions.
type ResponseOption func(*ResponseOptions)

// Muted asks the transport not to notify the receiver.
func Muted() ResponseOption {
	return func(o *ResponseOptions) { o.Muted = true }
}

// WithExtra attaches transport-specific fields to the reply.
func WithExtra(extra map[string]any) ResponseOption {
	return func(o *ResponseOptions) {
		if o.Extra == nil {
			o.Extra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			o.Extra[k] = v
		}
	}
}

// ApplyResponseOptions folds opts into a ResponseOptions value.
func ApplyResponseOptions(opts ...ResponseOption) ResponseOptions {
	var o ResponseOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
