package internal

// Option adjusts how Run assembles the engine.
type Option func(*application)

// application collects everything Run needs before it starts.
type application struct {
	config *Config
}

// WithConfig supplies the engine configuration. Run fails without one.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
