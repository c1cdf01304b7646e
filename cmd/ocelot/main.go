package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/ocelot/internal/api"
	"github.com/banshee-data/ocelot/internal/canbus"
	"github.com/banshee-data/ocelot/internal/carinterface"
	"github.com/banshee-data/ocelot/internal/config"
	"github.com/banshee-data/ocelot/internal/db"
	"github.com/banshee-data/ocelot/internal/loop"
	"github.com/banshee-data/ocelot/internal/mapd"
	"github.com/banshee-data/ocelot/internal/recorder"
	"github.com/banshee-data/ocelot/internal/serialmux"
	"github.com/banshee-data/ocelot/internal/units"
	"github.com/banshee-data/ocelot/internal/version"
)

var (
	devMode      = flag.Bool("dev", false, "Replay synthetic CAN traffic instead of opening adapters")
	listen       = flag.String("listen", ":8080", "Listen address")
	primaryPort  = flag.String("primary-port", "/dev/ttyACM0", "Serial port of the primary bus CAN adapter")
	chassisPort  = flag.String("chassis-port", "/dev/ttyACM1", "Serial port of the chassis bus CAN adapter (empty disables the bus)")
	primaryIface = flag.String("primary-socketcan", "", "SocketCAN interface for the primary bus, overrides -primary-port")
	chassisIface = flag.String("chassis-socketcan", "", "SocketCAN interface for the chassis bus, overrides -chassis-port")
	baudRate     = flag.Int("baud", 115200, "Baud rate of the serial CAN adapters")
	dbPath       = flag.String("db", "ocelot.db", "Telemetry database (empty disables recording)")
	configPath   = flag.String("config", config.DefaultConfigPath, "Tuning config file")
	mapFeed      = flag.String("map-feed", "", "File or FIFO of JSON speed limit lines, - for stdin")
	unitsFlag    = flag.String("units", units.MPH, "Default speed units of the HTTP API ("+units.GetValidUnitsString()+")")
	notes        = flag.String("notes", "", "Notes stored with the recording session")
	showVersion  = flag.Bool("version", false, "Print the build version and exit")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		migrateFlags := flag.NewFlagSet("migrate", flag.ExitOnError)
		path := migrateFlags.String("db", "ocelot.db", "Telemetry database")
		migrateFlags.Parse(os.Args[2:])
		if err := db.RunMigrateCommand(migrateFlags.Args(), *path, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Print(version.String())

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*unitsFlag) {
		log.Fatalf("Invalid -units %q, must be one of: %s", *unitsFlag, units.GetValidUnitsString())
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}
	variant, err := config.VariantConfigFor(tuning)
	if err != nil {
		log.Fatalf("failed to resolve vehicle variant: %v", err)
	}
	params, err := config.CarParamsFor(variant.Variant, variant.HasGasInterceptor)
	if err != nil {
		log.Fatalf("failed to build car params: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	portOpts := serialmux.PortOptions{BaudRate: *baudRate}
	primary, err := openBus(ctx, busConfig{
		Bus:            canbus.BusPrimary,
		SerialPath:     *primaryPort,
		SocketCAN:      *primaryIface,
		Port:           portOpts,
		BitrateCommand: tuning.SLCANBitrateCommand(),
		Dev:            *devMode,
	})
	if err != nil {
		log.Fatalf("failed to open primary bus: %v", err)
	}
	defer primary.Close()
	chassis, err := openBus(ctx, busConfig{
		Bus:            canbus.BusChassis,
		SerialPath:     *chassisPort,
		SocketCAN:      *chassisIface,
		Port:           portOpts,
		BitrateCommand: tuning.SLCANBitrateCommand(),
		Dev:            *devMode,
	})
	if err != nil {
		log.Fatalf("failed to open chassis bus: %v", err)
	}
	defer chassis.Close()
	log.Printf("primary bus on %s, chassis bus on %s", primary.Name, chassis.Name)

	bridge := mapd.NewBridge()
	ci, err := carinterface.New(carinterface.Options{
		Variant: variant,
		Params:  params,
		Limits:  bridge,
	})
	if err != nil {
		log.Fatalf("failed to build car interface: %v", err)
	}

	var (
		database *db.DB
		rec      *recorder.Recorder
		session  db.Session
	)
	observers := []loop.Observer{}
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		session, err = database.CreateSession(string(variant.Variant), *notes, time.Now())
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		log.Printf("recording session %s", session.ID)

		rec, err = recorder.New(recorder.Options{
			Store:     database,
			SessionID: session.ID,
			Every:     tuning.GetRecordEveryCycles(),
		})
		if err != nil {
			log.Fatalf("failed to build recorder: %v", err)
		}
		observers = append(observers, rec.Observe)
	}

	control, err := loop.New(loop.Options{
		RateHz:  tuning.GetCycleRateHz(),
		Sources: []loop.FrameSource{primary.Queue, chassis.Queue},
		Sinks: map[uint8]loop.FrameSink{
			canbus.BusPrimary: primary.Sink,
			canbus.BusChassis: chassis.Sink,
		},
		Controller: ci,
		Policy:     carinterface.ATLPolicy(tuning.GetAlwaysOnLongitudinal()),
		Observers:  observers,
	})
	if err != nil {
		log.Fatalf("failed to build control loop: %v", err)
	}

	// the feed must open before any routine starts
	var feed io.ReadCloser
	if *mapFeed != "" {
		feed, err = openFeed(*mapFeed)
		if err != nil {
			log.Fatalf("failed to open map feed: %v", err)
		}
		defer feed.Close()
	}

	// Create a wait group for the transports, the loop, the recorder and the HTTP server
	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && err != context.Canceled {
				log.Printf("%s routine failed: %v", name, err)
			}
			log.Printf("%s routine terminated", name)
		}()
	}

	for _, w := range primary.Workers {
		run("primary bus", w)
	}
	for _, w := range chassis.Workers {
		run("chassis bus", w)
	}
	run("control loop", control.Run)
	if rec != nil {
		run("recorder", rec.Run)
	}
	if feed != nil {
		run("map feed", func(ctx context.Context) error {
			return bridge.Follow(ctx, mapd.ReadLines(ctx, feed))
		})
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		if primary.Admin != nil {
			primary.Admin(mux)
		}
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		apiServer := api.NewServer(api.Options{
			States:   control,
			DB:       database,
			Bridge:   bridge,
			Tuning:   tuning,
			Recorder: recorderStats(rec),
			Units:    *unitsFlag,
		})
		apiMux := apiServer.ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/debug/speed-chart", apiMux)

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	if database != nil {
		if err := database.EndSession(session.ID, time.Now()); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}
	stats := control.Stats()
	log.Printf("Graceful shutdown complete after %d cycles (%d overruns, %d frames dropped)",
		stats.Cycles, stats.Overruns, primary.Queue.Dropped()+chassis.Queue.Dropped())
}

// loadTuning reads the tuning file, falling back to built-in defaults when
// the default path does not exist.
func loadTuning(path string) (*config.TuningConfig, error) {
	cfg, err := config.LoadTuningConfig(path)
	if err == nil {
		return cfg, nil
	}
	if path == config.DefaultConfigPath {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			log.Printf("no tuning file at %s, using built-in defaults", path)
			return config.DefaultTuningConfig(), nil
		}
	}
	return nil, err
}

func openFeed(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// recorderStats keeps a nil *Recorder from becoming a non-nil interface.
func recorderStats(rec *recorder.Recorder) api.RecorderStats {
	if rec == nil {
		return nil
	}
	return rec
}
