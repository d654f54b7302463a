package config

import (
	"os"
	"time"

	"github.com/chazu/directshape/pkg/kernel"
)

// EnvPrefix is prepended to every environment override, e.g.
// DIRECTSHAPE_KERNEL_MESH_CELLS=120 sets kernel.mesh_cells.
const EnvPrefix = "DIRECTSHAPE_"

// Config is the full runtime configuration.
type Config struct {
	Normalize NormalizeConfig `koanf:"normalize" validate:"required"`
	Units     UnitsConfig     `koanf:"units"     validate:"required"`
	Export    ExportConfig    `koanf:"export"    validate:"required"`
	Kernel    KernelConfig    `koanf:"kernel"    validate:"required"`
	Host      HostConfig      `koanf:"host"      validate:"required"`
	Engine    EngineConfig    `koanf:"engine"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
}

// NormalizeConfig configures recentering.
type NormalizeConfig struct {
	// Tolerance below which a translation is treated as zero length,
	// in the host unit.
	Tolerance float64 `koanf:"tolerance" validate:"gt=0"`
}

// UnitsConfig names the script and host length units.
type UnitsConfig struct {
	Source string `koanf:"source" validate:"required,oneof=m mm cm ft in"`
	Host   string `koanf:"host"   validate:"required,oneof=m mm cm ft in"`
}

// ExportConfig controls the interchange files written before import.
type ExportConfig struct {
	Dir string `koanf:"dir" validate:"required"`
	// Keep leaves exported files on disk after import.
	Keep bool `koanf:"keep"`
}

// KernelConfig tunes the sdfx kernel.
type KernelConfig struct {
	MeshCells int `koanf:"mesh_cells" validate:"min=8,max=2000"`
}

// HostConfig configures the host document.
type HostConfig struct {
	// AppID tags created direct shapes. Empty means one is generated.
	AppID           string `koanf:"app_id"`
	DefaultCategory string `koanf:"default_category" validate:"required"`
}

// EngineConfig configures script evaluation.
type EngineConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error disabled"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Normalize: NormalizeConfig{Tolerance: kernel.DefaultTolerance},
		Units:     UnitsConfig{Source: "m", Host: "ft"},
		Export:    ExportConfig{Dir: os.TempDir()},
		Kernel:    KernelConfig{MeshCells: 200},
		Host:      HostConfig{DefaultCategory: "Generic Models"},
		Engine:    EngineConfig{Timeout: 10 * time.Second},
		Log:       LogConfig{Level: "info"},
	}
}
