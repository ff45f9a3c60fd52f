package sim

import (
	"flag"
	"fmt"

	"github.com/robotalks/shotbridge/pkg/timer/protocol"
)

// Config defines the simulated timers.
type Config struct {
	Vendor  string `yaml:"vendor"`
	Mode    string `yaml:"mode"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Seed    int64  `yaml:"seed"`
}

var defaultConfig = Config{
	Vendor:  protocol.SGTimer.String(),
	Mode:    AutoShots.String(),
	Address: "aa:bb:cc:dd:ee:ff",
	Seed:    1,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.BindFlags(flag.CommandLine)
}

// BindFlags binds the fields to flags of the flag set.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Vendor, "sim-vendor", c.Vendor, "Vendor of the simulated timer: sg or specialpie.")
	fs.StringVar(&c.Mode, "sim-mode", c.Mode, "Simulation mode: manual, auto-connect, auto-shots or realistic.")
	fs.StringVar(&c.Name, "sim-name", c.Name, "Advertised name of the simulated timer.")
	fs.StringVar(&c.Address, "sim-address", c.Address, "Address of the simulated timer.")
	fs.Int64Var(&c.Seed, "sim-seed", c.Seed, "Seed of the shot pacing.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates the default configuration.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewRadio creates a Radio with one timer.
func (c *Config) NewRadio() (*Radio, error) {
	vendor, err := protocol.ParseVendor(c.Vendor)
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	t, err := NewTimer(vendor, c.Address, c.Name, mode, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("sim timer: %w", err)
	}
	return NewRadio(t), nil
}
