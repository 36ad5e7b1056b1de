package config

import "sort"

// Presets are complete run descriptions selectable by name.
var Presets = map[string]func() *Config{
	// Isotropic parameters from Kobayashi (1993) on a 300x300 grid.
	"kobayashi": DefaultConfig,
	"quick": func() *Config {
		c := DefaultConfig()
		c.Nx, c.Ny = 100, 100
		c.Lx, c.Ly = 3.0, 3.0
		c.Steps = 500
		c.OutputInterval = 50
		return c
	},
	// The 10x10 unit-spacing case used to sanity check operators.
	"smoke": func() *Config {
		c := DefaultConfig()
		c.Nx, c.Ny = 10, 10
		c.Lx, c.Ly = 10.0, 10.0
		c.Tau = 1.0
		c.Dt = 0.01
		c.Epsilon = 1.0
		c.Steps = 5
		c.OutputInterval = 1
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
