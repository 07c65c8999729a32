package internal

// Option is a functional option for Run and RunMCP.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig sets the application configuration. Both entry points require it.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
