package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/yanet-platform/sds/attachment"
	"github.com/yanet-platform/sds/internal/logging"
)

// Config is the top-level configuration for the sdsctl daemon.
type Config struct {
	// Logging configuration.
	Logging logging.Config `yaml:"logging"`
	// Attachment configuration.
	Attachment AttachmentConfig `yaml:"attachment"`
}

// AttachmentConfig configures the attachment manager.
type AttachmentConfig struct {
	// DefaultRegionSize is the backing buffer size given to attachments
	// created without an explicit capacity.
	DefaultRegionSize datasize.ByteSize `yaml:"default_region_size"`
	// Expiration is how long an attachment may go unused before the
	// manager reclaims it. Clamped to attachment.MinExpiration.
	Expiration time.Duration `yaml:"expiration"`
	// SweepInterval is the period of the manager's optional background
	// expiration sweep. Zero disables the periodic sweep.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns the package's baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Attachment: AttachmentConfig{
			DefaultRegionSize: 1 * datasize.MB,
			Expiration:        attachment.DefaultExpiration,
			SweepInterval:     time.Minute,
		},
	}
}

// Load reads and parses a YAML configuration file at path, applying it
// on top of DefaultConfig.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sds: failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("sds: failed to deserialize config: %w", err)
	}

	return cfg, nil
}

// ManagerConfig converts the config's attachment section into an
// attachment.ManagerConfig.
func (c *Config) ManagerConfig() attachment.ManagerConfig {
	return attachment.ManagerConfig{
		DefaultCapacity: c.Attachment.DefaultRegionSize.Bytes(),
		Expiration:      c.Attachment.Expiration,
		SweepInterval:   c.Attachment.SweepInterval,
	}
}
