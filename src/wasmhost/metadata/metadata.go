// Package metadata decodes and validates the declared per-component
// descriptor of spec §6: resource bounds, required capabilities, and
// identity fields every guest component must publish.
package metadata

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// MemoryResources bounds the component's linear memory (spec §6, §4.6).
type MemoryResources struct {
	MaxBytes uint64 `mapstructure:"max_bytes" validate:"required,min=524288,max=4194304"`
}

// CPUResources bounds fuel consumption and wall-clock execution time.
type CPUResources struct {
	MaxFuel        uint64 `mapstructure:"max_fuel" validate:"required,min=1000,max=100000000"`
	TimeoutSeconds uint32 `mapstructure:"timeout_seconds" default:"30" validate:"required,min=1,max=300"`
}

// StorageResources bounds the component's KV storage quota; zero means
// "use the system default policy" (spec §6).
type StorageResources struct {
	MaxBytes uint64 `mapstructure:"max_bytes"`
}

// Resources groups the three resource-limit families a component declares.
type Resources struct {
	Memory  MemoryResources  `mapstructure:"memory" validate:"required"`
	CPU     CPUResources     `mapstructure:"cpu" validate:"required"`
	Storage StorageResources `mapstructure:"storage"`
}

// CapabilityDescriptor is a single requested capability, matched against
// the granting policy's patterns (spec §3).
type CapabilityDescriptor struct {
	Kind    string `mapstructure:"kind" validate:"required,oneof=messaging storage filesystem network"`
	Pattern string `mapstructure:"pattern" validate:"required"`
}

// ComponentMetadata is the declared descriptor every component must
// publish via its `metadata()` guest export (spec §6).
type ComponentMetadata struct {
	Name                 string                 `mapstructure:"name" validate:"required"`
	Version              string                 `mapstructure:"version" validate:"required"`
	Author               string                 `mapstructure:"author" validate:"required"`
	Description          string                 `mapstructure:"description"`
	Resources            Resources              `mapstructure:"resources" validate:"required"`
	RequiredCapabilities []CapabilityDescriptor `mapstructure:"required_capabilities"`
}

var validate = validator.New()

// Decode parses raw (typically guest-supplied, already-deserialized) data
// into a ComponentMetadata, applying defaults and enforcing spec §6's
// resource bounds.
func Decode(raw map[string]any) (*ComponentMetadata, error) {
	md := &ComponentMetadata{}
	if err := defaults.Set(md); err != nil {
		return nil, fmt.Errorf("applying metadata defaults: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           md,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("building metadata decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding component metadata: %w", err)
	}

	if err := validate.Struct(md); err != nil {
		return nil, fmt.Errorf("invalid component metadata: %w", err)
	}
	return md, nil
}
