package bridge

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/button"
	"github.com/robotalks/shotbridge/pkg/device"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs"
	"github.com/robotalks/shotbridge/pkg/present"
	pmqtt "github.com/robotalks/shotbridge/pkg/present/mqtt"
	"github.com/robotalks/shotbridge/pkg/present/websocket"
	"github.com/robotalks/shotbridge/pkg/sim"
	"github.com/robotalks/shotbridge/pkg/transport/mqtt"
)

// App is the assembled bridge with its transport and presenters.
type App struct {
	Config    *Config
	Bridge    *Bridge
	Queue     *mqtt.Queue
	Publisher *pmqtt.Publisher
	SimRadio  *sim.Radio
	Hub       *websocket.Hub
	Button    *button.Reader
}

// NewApp assembles the bridge from the config.
func (c *Config) NewApp() (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	app := &App{Config: c}
	presenters := present.Multi{present.Log{}}

	if c.MQTTBrokerURL != "" {
		opts, prefix, err := mqtt.ClientOptionsFromURL(c.MQTTBrokerURL)
		if err != nil {
			return nil, fmt.Errorf("mqtt url: %w", err)
		}
		pmqtt.SetWill(opts, prefix, c.ID)
		app.Queue = mqtt.NewQueue(opts, prefix)
		app.Publisher = pmqtt.NewPublisher(app.Queue, c.ID, pmqtt.Meta{
			Description: c.Description,
			Transport:   c.Transport,
		})
		app.Queue.OnConnect = func(*mqtt.Queue) {
			if err := app.Publisher.PublishMeta(); err != nil {
				glog.Warningf("publish meta: %v", err)
			}
		}
		presenters = append(presenters, app.Publisher)
	}
	if c.Listen != "" {
		app.Hub = websocket.NewHub()
		presenters = append(presenters, app.Hub)
	}

	var transport device.Transport
	switch c.Transport {
	case TransportSim:
		radio, err := c.Sim.NewRadio()
		if err != nil {
			return nil, err
		}
		app.SimRadio, transport = radio, radio
	case TransportMQTT:
		radio := mqtt.NewRadio(app.Queue)
		radio.DropLinksOnDisconnect(app.Queue)
		transport = radio
	}

	app.Bridge = New(c.NewDevice(transport), presenters)
	app.Bridge.HealthInterval = c.HealthInterval
	app.Bridge.WatchdogTimeout = c.WatchdogTimeout
	if app.Publisher != nil {
		app.Bridge.Events = app.Publisher
	}
	if c.ButtonDevice != ButtonDisabled {
		app.Button = button.NewReader(c.ButtonDevice)
	}
	return app, nil
}

// AddToLoop implements LoopAdder.
func (a *App) AddToLoop(loop *fx.Loop) {
	if a.Config.LoopInterval > 0 {
		loop.Interval = a.Config.LoopInterval
	}
	if a.SimRadio != nil {
		loop.Add(a.SimRadio)
	}
	loop.Add(a.Bridge)
	if a.Queue != nil {
		loop.AddRunnable(fx.NamedRun("mqtt", fx.RunFunc(a.runMQTT)))
	}
	if a.Hub != nil {
		loop.AddRunnable(fx.NamedRun("websocket", &websocket.Server{Addr: a.Config.Listen, Hub: a.Hub}))
	}
	if a.Button != nil {
		loop.Add(a.Button)
	}
}

// Initialize connects the broker and initializes the bridge, it must
// be called before the loop runs.
func (a *App) Initialize() error {
	if a.Queue != nil {
		if token := a.Queue.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("mqtt connect: %w", token.Error())
		}
	}
	return a.Bridge.Initialize()
}

func (a *App) runMQTT(ctx context.Context) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	err := a.Publisher.SubscribeButton(func(source string) {
		press := &msgs.ButtonPress{}
		press.Source = source
		loopCtl.PostMessage(press)
		loopCtl.TriggerNext()
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	if err := a.Publisher.ClearMeta(); err != nil {
		glog.Warningf("clear meta: %v", err)
	}
	a.Queue.Close()
	return ctx.Err()
}
