package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	GridSize      float64 `yaml:"grid_size"`
	SettleDelayMs int     `yaml:"settle_delay_ms"`

	Hub     Hub     `yaml:"hub"`
	Journal Journal `yaml:"journal"`
}

type Hub struct {
	MaxQueue int `yaml:"max_queue"`
}

type Journal struct {
	Enabled bool `yaml:"enabled"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		GridSize:        100,
		SettleDelayMs:   200,
		Hub:             Hub{MaxQueue: 32},
		Journal:         Journal{Enabled: true},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
