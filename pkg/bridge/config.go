package bridge

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/shotbridge/pkg/device"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/sim"
)

// Transport kinds.
const (
	TransportSim  = "sim"
	TransportMQTT = "mqtt"
)

// Config defines the configurations of the bridge.
type Config struct {
	// ID names the bridge on the broker, defaults to the machine ID.
	ID string `yaml:"id"`
	// MQTTBrokerURL e.g. mqtt://host:port/topic-prefix, empty disables
	// publishing.
	MQTTBrokerURL string `yaml:"mqtt_url"`
	// Transport is sim or mqtt. The mqtt transport reaches a remote
	// radio through MQTTBrokerURL.
	Transport   string `yaml:"transport"`
	Description string `yaml:"description"`
	// Listen is the address of the display websocket, empty disables it.
	Listen string `yaml:"listen"`
	// ButtonDevice is the joystick index, -1 detects, -2 disables.
	ButtonDevice int `yaml:"button_device"`

	ScanDuration      time.Duration `yaml:"scan_duration"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	LoopInterval      time.Duration `yaml:"loop_interval"`
	HealthInterval    time.Duration `yaml:"health_interval"`
	WatchdogTimeout   time.Duration `yaml:"watchdog_timeout"`

	Sim sim.Config `yaml:"sim"`
}

// ButtonDisabled turns off the button input.
const ButtonDisabled = -2

var defaultConfig = Config{
	MQTTBrokerURL:     "mqtt://localhost:1883/shotbridge/",
	Transport:         TransportSim,
	Description:       "Shot timer bridge",
	ButtonDevice:      ButtonDisabled,
	ScanDuration:      device.DefaultScanDuration,
	SettleDelay:       device.DefaultSettleDelay,
	HeartbeatInterval: device.DefaultHeartbeatInterval,
	ReconnectInterval: device.DefaultReconnectInterval,
	LoopInterval:      fx.DefaultInterval,
	HealthInterval:    DefaultHealthInterval,
	WatchdogTimeout:   DefaultWatchdogTimeout,
}

var configFile string

func init() {
	if val := os.Getenv("SHOTBRIDGE_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("SHOTBRIDGE_ID"); val != "" {
		defaultConfig.ID = val
	} else if id, err := machineid.ProtectedID("shotbridge"); err == nil {
		defaultConfig.ID = id[:12]
	}
}

// SetupFlags sets command line flags, including those of the simulator.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML config file, flags override its values.")
	defaultConfig.bindFlags(flag.CommandLine)
	sim.SetupFlags()
}

func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ID, "id", c.ID, "Bridge ID")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	fs.StringVar(&c.Transport, "transport", c.Transport, "Timer transport: sim or mqtt")
	fs.StringVar(&c.Description, "description", c.Description, "Bridge description")
	fs.StringVar(&c.Listen, "listen", c.Listen, "Address of the display websocket, e.g. :8080")
	fs.IntVar(&c.ButtonDevice, "button", c.ButtonDevice, "Reset button joystick index, -1 to detect, -2 to disable")
	fs.DurationVar(&c.ScanDuration, "scan-duration", c.ScanDuration, "Scan duration")
	fs.DurationVar(&c.SettleDelay, "settle-delay", c.SettleDelay, "Delay after connecting before subscribing")
	fs.DurationVar(&c.HeartbeatInterval, "heartbeat", c.HeartbeatInterval, "Heartbeat log interval while idle")
	fs.DurationVar(&c.ReconnectInterval, "reconnect-interval", c.ReconnectInterval, "Interval between reconnect scans")
	fs.DurationVar(&c.LoopInterval, "loop-interval", c.LoopInterval, "Control loop interval")
	fs.DurationVar(&c.HealthInterval, "health-interval", c.HealthInterval, "Health check interval")
	fs.DurationVar(&c.WatchdogTimeout, "watchdog", c.WatchdogTimeout, "Warn after no timer activity during a session")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from the defaults, the config file and
// the command line, in increasing precedence.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	conf.Sim = *sim.Default()
	if configFile == "" {
		return &conf, nil
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	conf.bindFlags(fs)
	conf.Sim.BindFlags(fs)
	var err error
	flag.Visit(func(f *flag.Flag) {
		if fs.Lookup(f.Name) != nil && err == nil {
			err = fs.Set(f.Name, f.Value.String())
		}
	})
	return &conf, err
}

// LoadFile overlays the YAML file onto the config.
func (c *Config) LoadFile(fn string) error {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", fn, err)
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSim:
	case TransportMQTT:
		if c.MQTTBrokerURL == "" {
			return fmt.Errorf("transport mqtt requires a broker URL")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.MQTTBrokerURL != "" && c.ID == "" {
		return fmt.Errorf("bridge ID required")
	}
	return nil
}

// NewDevice creates the device with the configured timings.
func (c *Config) NewDevice(transport device.Transport) *device.Device {
	dev := device.New(transport)
	dev.ScanDuration = c.ScanDuration
	dev.SettleDelay = c.SettleDelay
	dev.HeartbeatInterval = c.HeartbeatInterval
	dev.ReconnectInterval = c.ReconnectInterval
	return dev
}
