package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"powermate/pkg/device"
	"powermate/pkg/powermate"
)

func printVersion() {
	fmt.Printf("powermated v%s\n", version)
	fmt.Println("Griffin PowerMate knob daemon: click/turn events and LED control")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  powermated [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads the PowerMate input device, turns raw button and dial records into")
	fmt.Println("  single/double/long clicks and left/right turns, and publishes them over")
	fmt.Println("  WebSocket and MQTT. The LED can be set or flashed via the IPC socket")
	fmt.Println("  (see powermate-ctl) or the MQTT <prefix>/led/set topic.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -device-dir string")
	fmt.Println("        Directory scanned for event* nodes (default \"/dev/input/\")")
	fmt.Println()
	fmt.Println("  -raw")
	fmt.Println("        Publish raw input records instead of consolidated events")
	fmt.Println()
	fmt.Println("  -fake")
	fmt.Println("        Run against an in-memory device (no hardware)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Println("        HTTP/WebSocket listener port, 0 disables (default 3002)")
	fmt.Println()
	fmt.Println("  -mqtt-broker string")
	fmt.Println("        MQTT broker URL (e.g. tcp://localhost:1883); enables MQTT when set")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read/write access to the input device (run as root or add user to 'input' group)")
	fmt.Println("  - A /dev/GriffinPowermate symlink (udev rule) takes precedence over scanning")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		deviceDir     = flag.String("device-dir", "/dev/input/", "Directory scanned for event* nodes")
		rawOnly       = flag.Bool("raw", false, "Publish raw input records instead of consolidated events")
		fake          = flag.Bool("fake", false, "Run against an in-memory device")
		ipcSocketPath = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		httpPort      = flag.Int("http-port", 3002, "HTTP/WebSocket listener port (0 disables)")
		mqttBroker    = flag.String("mqtt-broker", "", "MQTT broker URL; enables MQTT when set")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		_             = flag.Bool("version", false, "Print version and exit")
		_             = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given explicitly override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device-dir":
			ov.DeviceDir = deviceDir
		case "raw":
			ov.RawOnly = rawOnly
		case "fake":
			ov.Fake = fake
		case "ipc-socket":
			ov.IPCSocketPath = ipcSocketPath
		case "http-port":
			ov.HTTPPort = httpPort
		case "mqtt-broker":
			ov.MQTTBroker = mqttBroker
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("powermated failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mirror *ledMirror
	if cfg.LED.GPIOMirror.Enabled {
		m, err := openLEDMirror(cfg.LED.GPIOMirror.Chip, cfg.LED.GPIOMirror.Line, logger)
		if err != nil {
			return fmt.Errorf("gpio mirror: %w", err)
		}
		mirror = m
		defer func() {
			if err := mirror.Close(); err != nil {
				logger.Warn("closing gpio mirror", "error", err)
			}
		}()
	}

	opts := powermate.DefaultOptions()
	opts.DeviceDir = cfg.Device.Dir
	opts.Brightness = cfg.LED.Brightness
	opts.Timing = cfg.ToTiming()
	opts.SwallowReleaseQuirk = cfg.Timing.SwallowReleaseQuirk
	opts.Logger = logger
	if mirror != nil {
		opts.OnBrightness = mirror.Set
	}
	if cfg.Device.Fake {
		fakeDev := device.NewFake()
		opts.Finder = func() (powermate.Device, error) { return fakeDev, nil }
	}

	knob, err := powermate.New(opts)
	if err != nil {
		logger.Error("failed to open knob", "dir", cfg.Device.Dir, "error", err,
			"tip", "check the device is plugged in and readable (input group)")
		return err
	}
	defer func() {
		if err := knob.Close(); err != nil {
			logger.Debug("closing knob", "error", err)
		}
	}()

	if err := knob.Start(cfg.Device.RawOnly); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	d := newDaemon(knob, cfg.Device.RawOnly, cfg.ToFlash(), logger)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer stop()

	if cfg.HTTP.Port > 0 {
		srv := NewServer(logger, d.status, ServerConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.HTTP.WSPath)
		d.addSink(srv.Hub())

		wg.Add(2)
		go func() {
			defer wg.Done()
			srv.Hub().Run(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := runHTTPServer(ctx, cfg.HTTP.Port, mux, logger); err != nil {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	if cfg.MQTT.Enabled {
		pub, err := NewMQTTPublisher(cfg.MQTT, func(level int) {
			if err := d.setBrightness(level); err != nil {
				logger.Warn("mqtt brightness command failed", "error", err)
			}
		}, logger)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer pub.Close()
		d.addSink(pub)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runIPCServer(ctx, cfg.IPC.SocketPath, d.execute, logger); err != nil {
			logger.Error("IPC server error", "error", err)
			stop()
		}
	}()

	logger.Debug("configuration",
		"device_dir", cfg.Device.Dir,
		"fake", cfg.Device.Fake,
		"raw_only", cfg.Device.RawOnly,
		"timing", fmt.Sprintf("%+v", newTimingData(knob.Timing())),
		"brightness", knob.Brightness(),
		"mqtt_enabled", cfg.MQTT.Enabled,
		"gpio_mirror", cfg.LED.GPIOMirror.Enabled)
	logger.Info("listening", "ipc", cfg.IPC.SocketPath, "http_port", cfg.HTTP.Port, "raw_only", cfg.Device.RawOnly)

	err = d.run(ctx)
	stop()
	knob.Stop()
	logger.Info("shutting down")
	return err
}
