// Command rplidar brings up an RPLIDAR sensor on a serial port, streams
// express-scan frames and hands each completed revolution to the enabled
// consumers: a SQLite recording, PNG plots and a live debug view.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/rplidar.report/internal/config"
	"github.com/banshee-data/rplidar.report/internal/lidar/device"
	"github.com/banshee-data/rplidar.report/internal/lidar/monitor"
	"github.com/banshee-data/rplidar.report/internal/lidar/parse"
	"github.com/banshee-data/rplidar.report/internal/lidar/revolution"
	"github.com/banshee-data/rplidar.report/internal/lidar/scandb"
	"github.com/banshee-data/rplidar.report/internal/monitoring"
	"github.com/banshee-data/rplidar.report/internal/serialport"
	"github.com/banshee-data/rplidar.report/internal/timeutil"
	"github.com/banshee-data/rplidar.report/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Driver configuration JSON file")
	port        = flag.String("port", "", "Serial port (overrides config)")
	baud        = flag.Int("baud", 0, "Baud rate (overrides config)")
	dbPath      = flag.String("db", "", "Record revolutions to this SQLite file (overrides config)")
	plotDir     = flag.String("plots", "", "Write revolution PNGs to this directory (overrides config)")
	plotEvery   = flag.Int("plot-every", 10, "Plot one revolution in N")
	debugListen = flag.String("debug-listen", "", "Serve /debug/ pages on this address (overrides config)")
	revolutions = flag.Int("revolutions", 0, "Stop after N complete revolutions (0 = run until interrupted)")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	verbose     = flag.Bool("v", false, "Log per-frame diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// errEnough ends streaming once the requested number of revolutions is in.
var errEnough = errors.New("revolution limit reached")

type options struct {
	cfg            *config.DriverConfig
	factory        serialport.SerialPortFactory
	clock          timeutil.Clock
	plotEvery      int
	maxRevolutions int
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Println(version.String())

	if *verbose {
		monitoring.SetDebugLogger(log.Printf)
	}

	if *listPorts {
		ports, err := serialport.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, options{
		cfg:            cfg,
		factory:        serialport.RealSerialPortFactory{},
		clock:          timeutil.RealClock{},
		plotEvery:      *plotEvery,
		maxRevolutions: *revolutions,
	})
	if err != nil {
		log.Fatalf("rplidar: %v", err)
	}
}

// loadConfig reads path, falling back to built-in defaults when the default
// config file is absent.
func loadConfig(path string) (*config.DriverConfig, error) {
	cfg, err := config.LoadDriverConfig(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
		log.Printf("config %s not found, using built-in defaults", path)
		return config.DefaultDriverConfig(), nil
	}
	return nil, err
}

func applyFlags(cfg *config.DriverConfig) {
	if *port != "" {
		cfg.Port = port
	}
	if *baud > 0 {
		cfg.BaudRate = baud
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *plotDir != "" {
		cfg.PlotDir = plotDir
	}
	if *debugListen != "" {
		cfg.DebugListen = debugListen
	}
}

// run performs the handshake and streams until ctx ends, the revolution limit
// is reached or a fatal error occurs. The sensor is told to stop on the way
// out.
func run(ctx context.Context, o options) error {
	cfg := o.cfg

	sp, err := serialport.Open(o.factory, cfg.GetPort(), serialport.PortOptions{
		BaudRate:    cfg.GetBaudRate(),
		DataBits:    cfg.GetDataBits(),
		StopBits:    cfg.GetStopBits(),
		Parity:      cfg.GetParity(),
		ReadTimeout: cfg.GetReadTimeout(),
	})
	if err != nil {
		return err
	}
	defer sp.Close()
	sp.SetClock(o.clock)

	hs, err := device.NewInitializer(sp, o.clock, device.Options{
		HealthRetries:    cfg.GetHealthRetries(),
		HealthRetryDelay: cfg.GetHealthRetryDelay(),
		StopSettle:       cfg.GetStopSettle(),
		FlushSettle:      cfg.GetFlushSettle(),
	}).Run()
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	defer func() {
		if err := device.Stop(sp); err != nil {
			monitoring.Logf("failed to stop lidar: %v", err)
		}
	}()

	sink := &revolutionSink{max: o.maxRevolutions}

	if path := cfg.GetDBPath(); path != "" {
		db, err := scandb.Open(path)
		if err != nil {
			return err
		}
		defer db.Close()

		sessionID, err := db.StartSession(&scandb.Session{
			Port:         cfg.GetPort(),
			Model:        hs.Info.Model,
			Firmware:     hs.Info.Firmware(),
			Hardware:     hs.Info.Hardware,
			SerialNumber: hs.Info.SerialNumber,
			ScanMode:     hs.ScanMode.Name,
			StartedAt:    o.clock.Now(),
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := db.EndSession(sessionID, o.clock.Now()); err != nil {
				monitoring.Logf("failed to end session %s: %v", sessionID, err)
			}
		}()
		sink.db, sink.sessionID = db, sessionID
	}

	if dir := cfg.GetPlotDir(); dir != "" {
		sink.plotter = monitor.NewRevolutionPlotter(o.plotEvery)
		if err := sink.plotter.Start(dir); err != nil {
			return err
		}
		defer sink.plotter.Stop()
	}

	if addr := cfg.GetDebugListen(); addr != "" {
		sink.live = monitor.NewLive()
		mux := http.NewServeMux()
		sink.live.AttachRoutes(mux)
		if sink.db != nil {
			if err := sink.db.AttachAdminRoutes(mux); err != nil {
				return err
			}
		}

		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Logf("debug server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		monitoring.Logf("debug pages on http://%s/debug/", addr)
	}

	stream := device.NewStream(sp, parse.NewPipeline(o.clock))
	err = stream.Run(ctx, cfg.GetPollInterval(), sink.addSweep)
	sink.flush()

	monitoring.Logf("streamed %d frames, %d revolutions", stream.Pipeline().Frames(), sink.count)
	if errors.Is(err, errEnough) {
		return nil
	}
	return err
}

// revolutionSink segments sweeps into revolutions and fans each one out to
// the enabled consumers.
type revolutionSink struct {
	acc   *revolution.Accumulator
	max   int
	count int

	db        *scandb.ScanDB
	sessionID string
	plotter   *monitor.RevolutionPlotter
	live      *monitor.Live
}

func (s *revolutionSink) addSweep(sweep *parse.Sweep) error {
	if s.acc == nil {
		s.acc = revolution.NewAccumulator(0)
	}
	rev := s.acc.Add(sweep)
	if rev == nil {
		return nil
	}
	if err := s.handle(rev); err != nil {
		return err
	}
	if !rev.Partial {
		s.count++
	}
	if s.max > 0 && s.count >= s.max {
		return errEnough
	}
	return nil
}

// flush hands over the revolution still in progress.
func (s *revolutionSink) flush() {
	if s.acc == nil {
		return
	}
	if rev := s.acc.Flush(); rev != nil {
		if err := s.handle(rev); err != nil {
			monitoring.Logf("failed to store final revolution: %v", err)
		}
	}
}

func (s *revolutionSink) handle(rev *revolution.Revolution) error {
	stats := rev.Stats()
	monitoring.Logf("revolution %d: %d points (%d valid), mean %.0f mm, partial=%t",
		rev.Index, stats.Points, stats.Valid, stats.MeanMM, rev.Partial)

	if s.db != nil {
		if _, err := s.db.RecordRevolution(s.sessionID, rev); err != nil {
			return err
		}
	}
	if s.plotter != nil {
		if _, err := s.plotter.Plot(rev); err != nil {
			monitoring.Logf("failed to plot revolution %d: %v", rev.Index, err)
		}
	}
	if s.live != nil {
		s.live.Update(rev)
	}
	return nil
}
