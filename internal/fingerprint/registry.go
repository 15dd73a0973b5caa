package fingerprint

// Registry holds the signals a Detector evaluates, in evaluation order.
type Registry struct {
	signals []Signal
}

// NewRegistry creates a registry with all built-in signals.
func NewRegistry() *Registry {
	return &Registry{
		signals: []Signal{
			&pathSignal{},
			&generatorSignal{},
			&restSignal{},
		},
	}
}

// Signals returns the registered signals in evaluation order.
func (r *Registry) Signals() []Signal {
	return r.signals
}
