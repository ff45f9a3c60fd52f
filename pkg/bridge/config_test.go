package bridge

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/shotbridge/pkg/transport/mqtt"
)

func TestConfigLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "shotbridge")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	fn := filepath.Join(dir, "bridge.yaml")
	require.NoError(t, ioutil.WriteFile(fn, []byte(`
id: range-1
transport: mqtt
mqtt_url: mqtt://broker:1883/range/
scan_duration: 20s
watchdog_timeout: 1m
sim:
  vendor: specialpie
  mode: manual
`), 0644))

	conf := testConfig(t)
	require.NoError(t, conf.LoadFile(fn))
	require.Equal(t, "range-1", conf.ID)
	require.Equal(t, TransportMQTT, conf.Transport)
	require.Equal(t, "mqtt://broker:1883/range/", conf.MQTTBrokerURL)
	require.Equal(t, 20*time.Second, conf.ScanDuration)
	require.Equal(t, time.Minute, conf.WatchdogTimeout)
	require.Equal(t, DefaultHealthInterval, conf.HealthInterval)
	require.Equal(t, "specialpie", conf.Sim.Vendor)
	require.Equal(t, "manual", conf.Sim.Mode)
	require.NoError(t, conf.Validate())

	require.Error(t, conf.LoadFile(filepath.Join(dir, "missing.yaml")))
	require.NoError(t, ioutil.WriteFile(fn, []byte("scan_duration: [1"), 0644))
	require.Error(t, conf.LoadFile(fn))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"sim without broker", func(c *Config) { c.MQTTBrokerURL = "" }, true},
		{"mqtt without broker", func(c *Config) { c.Transport, c.MQTTBrokerURL = TransportMQTT, "" }, false},
		{"unknown transport", func(c *Config) { c.Transport = "serial" }, false},
		{"broker without id", func(c *Config) { c.ID = "" }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := testConfig(t)
			tc.modify(conf)
			if tc.valid {
				require.NoError(t, conf.Validate())
			} else {
				require.Error(t, conf.Validate())
			}
		})
	}
}

func TestNewApp(t *testing.T) {
	conf := testConfig(t)
	conf.MQTTBrokerURL = ""
	conf.Listen = ":0"
	conf.Sim.Mode = "manual"
	app, err := conf.NewApp()
	require.NoError(t, err)
	require.NotNil(t, app.SimRadio)
	require.NotNil(t, app.Hub)
	require.Nil(t, app.Queue)
	require.Nil(t, app.Publisher)
	require.Nil(t, app.Bridge.Events)
	require.Nil(t, app.Button)
	require.Equal(t, conf.ScanDuration, app.Bridge.Device.ScanDuration)

	conf.Sim.Vendor = "acme"
	_, err = conf.NewApp()
	require.Error(t, err)
}

func TestNewAppMQTTTransport(t *testing.T) {
	conf := testConfig(t)
	conf.Transport = TransportMQTT
	conf.MQTTBrokerURL = "mqtt://localhost:1883/bridge/"
	app, err := conf.NewApp()
	require.NoError(t, err)
	require.Nil(t, app.SimRadio)
	require.NotNil(t, app.Publisher)
	require.Equal(t, app.Publisher, app.Bridge.Events)
	require.IsType(t, &mqtt.Radio{}, app.Bridge.Device.Transport)
	require.NotNil(t, app.Queue.OnDisconnect)
	app.Queue.OnDisconnect(app.Queue)
}

// testConfig returns the defaults with an ID set.
func testConfig(t *testing.T) *Config {
	conf, err := NewConfig()
	require.NoError(t, err)
	conf.ID = "test"
	return conf
}
