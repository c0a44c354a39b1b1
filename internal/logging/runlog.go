package logging

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunLogger collects the resolved configuration of a pipeline run, external
// tool paths and feature toggles, then emits a single structured zerolog
// event before processing starts. One event makes it easy to see exactly how
// a run was configured when reading a log afterwards.
type RunLogger struct {
	name     string
	tools    map[string]string
	features map[string]bool
	config   map[string]string
}

// NewRunLogger creates a RunLogger for the given command name
// (e.g. "splat-render", "splat-pipeline").
func NewRunLogger(name string) *RunLogger {
	return &RunLogger{
		name:     name,
		tools:    make(map[string]string),
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Tool registers an external executable used by this run.
func (r *RunLogger) Tool(label, path string) *RunLogger {
	r.tools[label] = path
	return r
}

// Feature registers a boolean feature toggle (e.g. "sequential", "keepTemp").
func (r *RunLogger) Feature(name string, enabled bool) *RunLogger {
	r.features[name] = enabled
	return r
}

// Config registers a resolved configuration key-value pair.
func (r *RunLogger) Config(key, value string) *RunLogger {
	r.config[key] = value
	return r
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO event with all collected information.
func (r *RunLogger) Log() {
	evt := log.Info().Dict("run", zerolog.Dict().
		Str("name", r.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv("SPLAT_LOG_LEVEL")))

	if len(r.tools) > 0 {
		evt = evt.Dict("tools", dictFromMap(r.tools))
	}
	if len(r.features) > 0 {
		d := zerolog.Dict()
		for k, v := range r.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(r.config) > 0 {
		evt = evt.Dict("config", dictFromMap(r.config))
	}

	evt.Msg("Run configuration resolved")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
