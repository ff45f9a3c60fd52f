package main

import (
	"context"
	"flag"
	"os"
	"reflect"
	"strings"

	"github.com/golang/glog"

	fx "github.com/robotalks/shotbridge/pkg/framework"
	"github.com/robotalks/shotbridge/pkg/msgs"
	"github.com/robotalks/shotbridge/pkg/transport/mqtt"
)

var mqttURL = "mqtt://localhost:1883/shotbridge/"

func init() {
	if val := os.Getenv("SHOTBRIDGE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.Set("logtostderr", "true")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Exit(token.Error())
	}
	q.Sub("#", func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/meta"):
			glog.Infof("%s: %s", topic, string(payload))
			return
		case strings.HasPrefix(topic, mqtt.TopicRadio):
			glog.V(2).Infof("%s: %d bytes", topic, len(payload))
			return
		}
		env, err := msgs.DecodeEnvelope(payload)
		if err != nil {
			glog.Warningf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := env.Decode()
		if err != nil {
			glog.Warningf("%s: decode error: (type_id=%x) %v", topic, env.TypeId, err)
			return
		}
		glog.Infof("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
			msg.(msgs.SerializableMessage).Serializable().String())
	})
	err = fx.NewRunner().HandleSignals().Go(fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, q, func() error {
			<-ctx.Done()
			return nil
		})
	})).Wait()
	if err != nil {
		glog.Exit(err)
	}
}
