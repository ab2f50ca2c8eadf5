package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenerationDefaults are the fallback topic list and the fixed framework set
// autopilot draws from when the user configured none.
type GenerationDefaults struct {
	Topics     []string `yaml:"topics"`
	Frameworks []string `yaml:"frameworks"`
}

var builtinDefaults = GenerationDefaults{
	Topics: []string{
		"Leadership lessons",
		"Productivity systems",
		"Career growth",
		"Industry trends",
		"Personal branding",
	},
	Frameworks: []string{
		"AIDA",
		"PAS",
		"Storytelling",
		"Listicle",
		"Contrarian take",
	},
}

// LoadGenerationDefaults reads the optional YAML defaults file; a missing
// path or file falls back to the built-in set.
func LoadGenerationDefaults(path string) (GenerationDefaults, error) {
	if path == "" {
		return builtinDefaults, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return builtinDefaults, nil
		}
		return builtinDefaults, fmt.Errorf("read generation defaults: %w", err)
	}
	var out GenerationDefaults
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return builtinDefaults, fmt.Errorf("parse generation defaults: %w", err)
	}
	if len(out.Topics) == 0 {
		out.Topics = builtinDefaults.Topics
	}
	if len(out.Frameworks) == 0 {
		out.Frameworks = builtinDefaults.Frameworks
	}
	return out, nil
}
