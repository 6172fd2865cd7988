// quadenc-mon follows the telemetry of an encoder board, shows it in an
// interactive shell and republishes it over HTTP, websockets and MQTT.
//
// With -sim it runs a simulated board in-process instead of opening a
// serial port; the shell can then turn its wheels and read it as the bus
// master would.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"quadenc/config"
	"quadenc/core"
	"quadenc/host/bench"
	"quadenc/host/mcu"
	"quadenc/host/monitor"
	"quadenc/host/serial"
)

// EnvConfig holds the defaults taken from the environment; flags override
type EnvConfig struct {
	Device   string `env:"QUADENC_DEVICE" envDefault:"/dev/ttyACM0"`
	Baud     int    `env:"QUADENC_BAUD" envDefault:"115200"`
	HTTPAddr string `env:"QUADENC_HTTP"`
	MQTTURL  string `env:"QUADENC_MQTT"`
	Board    string `env:"QUADENC_BOARD"`
	Bench    string `env:"QUADENC_BENCH"`
}

var (
	envConfig EnvConfig

	simulated bool
	evalOnly  bool
	timeout   time.Duration
)

func init() {
	if err := env.Parse(&envConfig); err != nil {
		fmt.Fprintf(os.Stderr, "environment: %v\n", err)
	}
	flag.StringVar(&envConfig.Device, "device", envConfig.Device, "Serial device path")
	flag.IntVar(&envConfig.Baud, "baud", envConfig.Baud, "Baud rate (ignored for USB CDC)")
	flag.StringVar(&envConfig.HTTPAddr, "http", envConfig.HTTPAddr, "Serve the HTTP API on this address, e.g. :8080")
	flag.StringVar(&envConfig.MQTTURL, "mqtt", envConfig.MQTTURL, "Publish to this MQTT broker URL, e.g. mqtt://localhost:1883/robo/")
	flag.StringVar(&envConfig.Board, "board", envConfig.Board, "Board config file (JSON or YAML) for the simulated board")
	flag.StringVar(&envConfig.Bench, "bench", envConfig.Bench, "Drive the simulated board from Linux GPIOs listed in this file")
	flag.BoolVar(&simulated, "sim", false, "Run a simulated board instead of opening the serial port")
	flag.BoolVar(&evalOnly, "e", false, "Run the command given as arguments and exit")
	flag.DurationVar(&timeout, "identify-timeout", 3*time.Second, "How long to wait for the board to identify")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := mcu.NewMCU()
	sh := &shell{mcu: m}

	if simulated {
		board, err := startSimBoard(ctx, m)
		if err != nil {
			glog.Exitf("simulated board: %v", err)
		}
		sh.board = board
	} else {
		cfg := serial.DefaultConfig(envConfig.Device)
		cfg.Baud = envConfig.Baud
		if err := m.ConnectWithConfig(cfg); err != nil {
			glog.Exitf("connect %s: %v", envConfig.Device, err)
		}
	}
	defer m.Close()

	if err := m.WaitIdentify(timeout); err != nil {
		glog.Warningf("identify: %v", err)
	}

	if envConfig.HTTPAddr != "" {
		go func() {
			glog.Infof("HTTP API on %s", envConfig.HTTPAddr)
			if err := http.ListenAndServe(envConfig.HTTPAddr, monitor.NewRouter(m)); err != nil {
				glog.Errorf("http: %v", err)
			}
		}()
	}

	if envConfig.MQTTURL != "" {
		client, bridge, err := connectMQTT(envConfig.MQTTURL)
		if err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		defer client.Disconnect(250)
		go func() {
			if err := bridge.Run(ctx, m); err != nil && err != context.Canceled {
				glog.Errorf("mqtt bridge: %v", err)
			}
		}()
	}

	sh.run(flag.Args())
}

func connectMQTT(brokerURL string) (paho.Client, *monitor.MQTTBridge, error) {
	opts, prefix, err := monitor.ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, nil, err
	}
	client := paho.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, nil, err
	}
	return client, monitor.NewMQTTBridge(client, prefix, monitor.BoardID()), nil
}

// startSimBoard creates a simulated board, streams its telemetry into m
// and optionally wires it to bench GPIOs
func startSimBoard(ctx context.Context, m *mcu.MCU) (*simBoard, error) {
	cfg := config.DefaultConfig()
	if envConfig.Board != "" {
		var err error
		if cfg, err = config.LoadFile(envConfig.Board); err != nil {
			return nil, err
		}
	}

	board := newSimBoard(cfg)
	r, w := io.Pipe()
	m.Attach(serial.NewPipePort(r, nil))
	go func() {
		board.stream(ctx, w)
		w.Close()
	}()

	if envConfig.Bench != "" {
		bc, err := bench.ParseConfig(envConfig.Bench)
		if err != nil {
			return nil, err
		}
		b, err := bench.Open(bc, board.machine)
		if err != nil {
			return nil, err
		}
		go func() {
			defer b.Close()
			if err := b.Run(ctx); err != nil && err != context.Canceled {
				glog.Errorf("bench: %v", err)
			}
		}()
	}
	return board, nil
}

// samplerOf maps the configured sampler name to its identify code
func samplerOf(cfg *config.BoardConfig) core.Sampler {
	if cfg.Sampler == config.SamplerPIO {
		return core.SamplerPIO
	}
	return core.SamplerIRQ
}
