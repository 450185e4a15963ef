package telemetry

// Config controls OpenTelemetry tracing of bridge requests.
type Config struct {
	// Enabled turns on span export. When false a no-op tracer is installed.
	Enabled bool

	ServiceName string

	ServiceVersion string

	// Endpoint is the OTLP gRPC collector address (host:port)
	Endpoint string

	Insecure bool

	// SampleRate is the fraction of traces kept, clamped to [0, 1]
	SampleRate float64
}

// DefaultConfig returns tracing disabled, with every sample kept once it
// is enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "fsbridge",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
