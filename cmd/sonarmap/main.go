// Command sonarmap builds an occupancy map from a sonar log, replayed from a
// file or streamed from a serial port, and writes the fused grid.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/sonarmap/internal/config"
	"github.com/banshee-data/sonarmap/internal/globalmap"
	"github.com/banshee-data/sonarmap/internal/mapper"
	"github.com/banshee-data/sonarmap/internal/sonar"
	"github.com/banshee-data/sonarmap/internal/sonarfeed"
	"github.com/banshee-data/sonarmap/internal/store/sqlite"
	"github.com/banshee-data/sonarmap/internal/version"
)

var (
	configPath  = flag.String("config", "", "Mapping config JSON file (defaults apply when empty)")
	logPath     = flag.String("log", "", "Sonar log file to replay")
	serialPath  = flag.String("serial", "", "Serial port streaming sonar log lines")
	baud        = flag.Int("baud", sonarfeed.DefaultBaudRate, "Serial baud rate")
	dbPath      = flag.String("db", "", "SQLite database to record the run in")
	outPath     = flag.String("out", "", "Write the fused grid here (stdout when empty)")
	geojsonPath = flag.String("geojson", "", "Write the region partition as GeoJSON")
	updatesPath = flag.String("updates", "", "Write the per-reading update log here")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Print(version.String())

	if (*logPath == "") == (*serialPath == "") {
		log.Fatal("exactly one of -log or -serial is required")
	}

	cfg := config.EmptyMappingConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadMappingConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	settings := cfg.Settings()
	robot := sonar.Pioneer{}

	var feed *sonarfeed.Feed
	var err error
	if *logPath != "" {
		feed, err = sonarfeed.NewFileFeed(*logPath)
	} else {
		feed, err = sonarfeed.NewSerialFeed(*serialPath, sonarfeed.PortOptions{BaudRate: *baud})
	}
	if err != nil {
		log.Fatalf("failed to open sonar feed: %v", err)
	}
	defer feed.Close()

	var opts []mapper.Option
	if *updatesPath != "" {
		f, err := os.Create(*updatesPath)
		if err != nil {
			log.Fatalf("failed to create update log: %v", err)
		}
		defer f.Close()
		opts = append(opts, mapper.WithSink(f))
	}

	var store *sqlite.Store
	var runID string
	if *dbPath != "" {
		store, err = sqlite.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
		if runID, err = store.CreateRun(settings); err != nil {
			log.Fatalf("failed to create run: %v", err)
		}
		log.Printf("recording run %s in %s", runID, *dbPath)
		opts = append(opts, mapper.WithRecorder(store, runID))
	}

	global := globalmap.New(settings, robot)
	m := mapper.New(global, robot, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, sweeps := feed.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feed.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor sonar feed: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	runErr := m.Run(ctx, sweeps)
	if errors.Is(runErr, context.Canceled) {
		// Interrupted: keep what was mapped so far.
		runErr = m.Finish()
	}
	feed.Close()
	wg.Wait()
	if runErr != nil {
		log.Fatalf("mapping failed: %v", runErr)
	}

	st := feed.Stats()
	log.Printf("read %d lines: %d sweeps, %d skipped, %d malformed", st.Lines, st.Sweeps, st.Skipped, st.Malformed)

	if err := writeGrid(global, *outPath); err != nil {
		log.Fatalf("failed to write grid: %v", err)
	}
	if *geojsonPath != "" {
		if err := writeGeoJSON(global, *geojsonPath); err != nil {
			log.Fatalf("failed to write regions: %v", err)
		}
	}
	if store != nil {
		if _, err := store.SaveSnapshot(runID, settings.GridName, global.Grid().Cells()); err != nil {
			log.Fatalf("failed to save snapshot: %v", err)
		}
		if err := store.FinishRun(runID); err != nil {
			log.Fatalf("failed to finish run: %v", err)
		}
	}
}

func writeGrid(global *globalmap.GlobalMap, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return global.Put(w, true)
}

func writeGeoJSON(global *globalmap.GlobalMap, path string) error {
	data, err := global.RegionsGeoJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("wrote %d regions to %s", len(global.Regions()), path)
	return nil
}
