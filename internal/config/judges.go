package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ai-judge/internal/evaluation"
)

// JudgeSeed is one judge declared in the seed file.
type JudgeSeed struct {
	Name         string `yaml:"name"`
	ModelName    string `yaml:"model_name"`
	SystemPrompt string `yaml:"system_prompt"`
	Active       *bool  `yaml:"active"`
}

func (s JudgeSeed) Judge() evaluation.Judge {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return evaluation.Judge{
		Name:         s.Name,
		SystemPrompt: s.SystemPrompt,
		ModelName:    s.ModelName,
		Active:       active,
	}
}

type seedFile struct {
	Judges []JudgeSeed `yaml:"judges"`
}

// LoadJudgeSeeds reads the YAML seed file at path. An empty path means no
// seeds.
func LoadJudgeSeeds(path string) ([]JudgeSeed, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read judge seeds: %w", err)
	}
	seeds, err := parseJudgeSeeds(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seeds, nil
}

func parseJudgeSeeds(b []byte) ([]JudgeSeed, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode judge seeds: %w", err)
	}

	seen := make(map[string]bool, len(f.Judges))
	for i, s := range f.Judges {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("judges[%d]: name is required", i)
		}
		if strings.TrimSpace(s.ModelName) == "" {
			return nil, fmt.Errorf("judge %q: model_name is required", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("judge %q declared twice", name)
		}
		seen[name] = true
		f.Judges[i].Name = name
	}
	return f.Judges, nil
}
