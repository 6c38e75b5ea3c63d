package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from the process environment using its `env` and
// `envDefault` struct tags.
func Load(cfg any) error {
	return parse(cfg, env.Options{})
}

// LoadFrom is Load against an explicit set of variables instead of the
// process environment.
func LoadFrom(cfg any, vars map[string]string) error {
	return parse(cfg, env.Options{Environment: vars})
}

func parse(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
