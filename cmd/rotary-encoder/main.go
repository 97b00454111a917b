// Command rotary-encoder decodes a KY-040 rotary encoder from GPIO edge
// events and publishes each step to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sweeney/rotary-encoder/internal/encoder"
	"github.com/sweeney/rotary-encoder/internal/gpio"
	"github.com/sweeney/rotary-encoder/internal/logic"
	"github.com/sweeney/rotary-encoder/internal/mqtt"
	"github.com/sweeney/rotary-encoder/internal/status"
	"github.com/sweeney/rotary-encoder/internal/web"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	chip       string
	pinCLK     int
	pinDT      int
	activeLow  bool
	bias       string
	poll       time.Duration
	broker     string
	name       string
	heartbeat  time.Duration
	httpAddr   string
	printState bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.chip, "chip", gpio.DefaultChip, "GPIO chip device name")
	flag.IntVar(&cfg.pinCLK, "pin-clk", gpio.DefaultPinClock, "BCM pin number for the encoder CLK line")
	flag.IntVar(&cfg.pinDT, "pin-dt", gpio.DefaultPinData, "BCM pin number for the encoder DT line")
	flag.BoolVar(&cfg.activeLow, "active-low", true, "Treat a low pin as asserted")
	flag.StringVar(&cfg.bias, "bias", string(gpio.BiasPullUp), "Input bias: pull-up, pull-down or disabled")
	flag.DurationVar(&cfg.poll, "poll", 5*time.Millisecond, "Interval for reading the decoded step")
	flag.StringVar(&cfg.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.StringVar(&cfg.name, "name", "knob", "Encoder name used in MQTT topics")
	flag.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&cfg.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&cfg.printState, "print-state", false, "Print current pin levels and exit")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	log, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("fatal", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func run(cfg config, log *zap.Logger) error {
	if cfg.pinCLK == cfg.pinDT {
		return fmt.Errorf("pin-clk and pin-dt must differ (both %d)", cfg.pinCLK)
	}

	// Initialize GPIO
	platform, err := gpio.NewRealPlatform(cfg.chip, gpio.Bias(cfg.bias), log)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer platform.Close()

	// Print state mode
	if cfg.printState {
		return printState(platform, cfg.pinCLK, cfg.pinDT)
	}

	decoder := encoder.New(platform, cfg.pinCLK, cfg.pinDT,
		encoder.WithActiveLow(cfg.activeLow),
		encoder.WithLogger(log))
	decisions := &decisionCounter{}
	decisions.attach(decoder)
	if err := decoder.Begin(); err != nil {
		return fmt.Errorf("arm encoder: %w", err)
	}
	defer decoder.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.broker, cfg.name, log)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()
	publisher.OnReconnect(func() {
		if err := publisher.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			log.Warn("failed to publish reconnect event", zap.Error(err))
		}
	})

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Name:        cfg.name,
		Chip:        cfg.chip,
		ClockPin:    cfg.pinCLK,
		DataPin:     cfg.pinDT,
		ActiveLow:   cfg.activeLow,
		Bias:        cfg.bias,
		PollMs:      cfg.poll.Milliseconds(),
		HeartbeatMs: cfg.heartbeat.Milliseconds(),
		Broker:      cfg.broker,
		HTTPAddr:    cfg.httpAddr,
	})
	tracker.SetEncoder(status.Encoder{Armed: decoder.Armed()})
	tracker.SetMQTTConnected(publisher.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	if h, err := status.SampleHost(time.Now()); err != nil {
		log.Warn("host sample failed", zap.Error(err))
	} else {
		tracker.SetHost(h)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn("failed to publish startup event", zap.Error(err))
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.httpAddr))
	}

	log.Info("started",
		zap.Int("clk", cfg.pinCLK),
		zap.Int("dt", cfg.pinDT),
		zap.Bool("active_low", cfg.activeLow),
		zap.Duration("poll", cfg.poll),
		zap.String("broker", cfg.broker),
		zap.Duration("heartbeat", cfg.heartbeat))

	ticker := time.NewTicker(cfg.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		steps:      decoder,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		decisions:  decisions,
		heartbeat:  cfg.heartbeat,
		host:       status.SampleHost,
		now:        time.Now,
		log:        log,
	}, ticker.C, sigCh)
}

func printState(p gpio.Platform, pinCLK, pinDT int) error {
	for _, pin := range []int{pinCLK, pinDT} {
		if err := p.ConfigureInput(pin); err != nil {
			return fmt.Errorf("configure pin %d: %w", pin, err)
		}
	}
	clk, err := p.ReadLevel(pinCLK)
	if err != nil {
		return fmt.Errorf("read CLK: %w", err)
	}
	dt, err := p.ReadLevel(pinDT)
	if err != nil {
		return fmt.Errorf("read DT: %w", err)
	}
	fmt.Printf("CLK: %d, DT: %d\n", clk, dt)
	return nil
}

// stepSource is the part of the decoder the loop polls.
type stepSource interface {
	Read() encoder.Step
	Levels() (clock, data int)
	ReadErrors() uint64
	Armed() bool
}

// decisionCounter counts every decision from the decoder hooks, including
// those overwritten before the loop reads them.
type decisionCounter struct {
	forward  atomic.Int64
	backward atomic.Int64
}

func (c *decisionCounter) attach(d *encoder.Decoder) {
	d.AttachForwardHook(func() { c.forward.Add(1) })
	d.AttachBackwardHook(func() { c.backward.Add(1) })
}

func (c *decisionCounter) counts() logic.EventCounts {
	if c == nil {
		return logic.EventCounts{}
	}
	return logic.EventCounts{
		Forward:  int(c.forward.Load()),
		Backward: int(c.backward.Load()),
	}
}

type loop struct {
	steps      stepSource
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	decisions  *decisionCounter
	heartbeat  time.Duration
	host       func(time.Time) (status.Host, error)
	now        func() time.Time
	log        *zap.Logger
}

func runLoop(l loop, tick <-chan time.Time, sig <-chan os.Signal) error {
	collector := logic.NewCollector(l.now())

	for {
		select {
		case s := <-sig:
			l.log.Info("shutting down", zap.Stringer("signal", s))
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: l.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if l.tracker != nil {
				l.refresh(collector)
				snap := l.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				l.log.Warn("failed to publish shutdown event", zap.Error(err))
			} else {
				l.log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			t := l.now()
			if event := collector.Process(logic.Input{Step: l.steps.Read(), Time: t}); event != nil {
				l.log.Debug("step", zap.String("type", string(event.Type)), zap.Uint64("seq", event.Seq))
				if err := l.publisher.Publish(*event); err != nil {
					l.log.Warn("publish error", zap.Error(err))
					// Don't crash on publish failure
				}
			}

			// Check for heartbeat
			if hbData := collector.CheckHeartbeat(t, l.heartbeat); hbData != nil {
				l.log.Info("heartbeat",
					zap.Duration("uptime", hbData.Uptime),
					zap.Int("forward", hbData.Counts.Forward),
					zap.Int("backward", hbData.Counts.Backward))

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if l.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						l.tracker.SetNetwork(net)
					}
					if l.host != nil {
						if h, err := l.host(t); err != nil {
							l.log.Warn("host sample failed", zap.Error(err))
						} else {
							l.tracker.SetHost(h)
						}
					}
					l.refresh(collector)
					snap := l.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := l.publisher.PublishSystem(hbEvent); err != nil {
					l.log.Warn("heartbeat publish error", zap.Error(err))
				}
			}

			// Update status tracker for HTTP consumers
			if l.tracker != nil {
				l.refresh(collector)
			}
		}
	}
}

func (l loop) refresh(c *logic.Collector) {
	last, lastAt := c.LastStep()
	l.tracker.Update(last, lastAt, c.EventCountsSnapshot(), l.decisions.counts())

	clk, dt := l.steps.Levels()
	l.tracker.SetEncoder(status.Encoder{
		Armed:      l.steps.Armed(),
		ClockLevel: clk,
		DataLevel:  dt,
		ReadErrors: l.steps.ReadErrors(),
	})
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		l.tracker.SetMQTTQueue(l.mqttStatus.Buffered(), l.mqttStatus.Dropped())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
