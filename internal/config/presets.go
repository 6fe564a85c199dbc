package config

// Presets are named bundles of capability flags and sizing, applied on top
// of built-in defaults and below environment override files.
var presets = map[string]map[string]string{
	"frontend-only": {
		"frontendTech": "nextjs",
	},
	"backend-only": {
		"backendTech": "fastify",
	},
	"fullstack": {
		"frontendTech": "nextjs",
		"backendTech":  "fastify",
		"postgres":     "true",
	},
	"fullstack-cache": {
		"frontendTech": "nextjs",
		"backendTech":  "fastify",
		"postgres":     "true",
		"redis":        "true",
	},
	"ml-service": {
		"backendTech": "fastify",
		"postgres":    "true",
		"modalApp":    "true",
		"memory":      "1Gi",
	},
}

// PresetNames returns the available preset names for help output.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}

// lookupPreset returns the preset key/value map, or UnknownPresetError.
func lookupPreset(name string) (map[string]string, error) {
	if name == "" {
		return nil, nil
	}
	p, ok := presets[name]
	if !ok {
		return nil, &UnknownPresetError{Preset: name}
	}
	return p, nil
}
