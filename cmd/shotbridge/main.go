package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/shotbridge/pkg/bridge"
	fx "github.com/robotalks/shotbridge/pkg/framework"
)

func init() {
	bridge.SetupFlags()
	flag.Set("logtostderr", "true")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := bridge.NewConfig()
	if err != nil {
		glog.Exit(err)
	}
	app, err := conf.NewApp()
	if err != nil {
		glog.Exit(err)
	}
	if err := app.Initialize(); err != nil {
		glog.Exit(err)
	}
	glog.Infof("bridge %s started, transport %s", conf.ID, conf.Transport)
	loop := fx.NewLoop().Add(app)
	err = fx.NewRunner().HandleSignals().Go(fx.NamedRun("loop", loop)).Wait()
	if err != nil {
		glog.Exit(err)
	}
}
