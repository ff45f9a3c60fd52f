package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/bridge"
	"github.com/robotalks/shotbridge/pkg/cli/sh"
	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/transport/mqtt"
)

var radioURL string

func init() {
	bridge.SetupFlags()
	flag.StringVar(&radioURL, "radio-url", radioURL, "Serve the simulated radio on the MQTT broker instead of running a bridge.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := bridge.NewConfig()
	if err != nil {
		glog.Exit(err)
	}
	loop := fx.NewLoop()
	if radioURL != "" {
		radio, err := conf.Sim.NewRadio()
		if err != nil {
			glog.Exit(err)
		}
		q, err := mqtt.NewQueueFromURL(radioURL)
		if err != nil {
			glog.Exit(err)
		}
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			glog.Exit(token.Error())
		}
		defer q.Close()
		loop.Add(radio).AddRunnable(fx.NamedRun("radio", mqtt.NewRadioServer(q, radio)))
	} else {
		conf.Transport = bridge.TransportSim
		app, err := conf.NewApp()
		if err != nil {
			glog.Exit(err)
		}
		if err := app.Initialize(); err != nil {
			glog.Exit(err)
		}
		loop.Add(app)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner := fx.NewRunnerWith(ctx).Go(fx.NamedRun("loop", loop))
	shell := sh.New(loop)
	err = shell.Run(flag.Args()...)
	shell.Close()
	cancel()
	runner.Wait()
	if err != nil {
		glog.Exit(err)
	}
}
