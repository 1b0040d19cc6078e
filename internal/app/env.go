package app

import (
	"github.com/iscle/haven-go/internal/buildinfo"
	"github.com/iscle/haven-go/internal/conf"
)

// Env carries what the root command resolves before a subcommand runs.
// Settings is nil until configuration has been loaded.
type Env struct {
	Build    *buildinfo.Context
	Settings *conf.Settings
	Options  []Option
}

// Open wires an App from the loaded settings.
func (e *Env) Open() (*App, error) {
	return New(e.Settings, e.Build, e.Options...)
}
