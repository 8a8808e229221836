package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/matchmove/camdb/internal/cachedir"
	"github.com/matchmove/camdb/internal/camdb"
	"github.com/matchmove/camdb/internal/camsync"
	"github.com/matchmove/camdb/internal/catalog"
	"github.com/matchmove/camdb/internal/config"
	"github.com/matchmove/camdb/internal/convert"
	"github.com/matchmove/camdb/internal/domain"
	"github.com/matchmove/camdb/internal/log"
	"github.com/matchmove/camdb/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `Usage: camdb [flags] <command>

Commands:
  load                       fetch all cameras and refresh the cache
  cached                     list cameras from the cache only
  update                     refresh the cache if the remote data changed
  info                       show cache metadata
  clear                      remove all cached data
  search <query>             fuzzy-search cameras by name
  sensors <cameraID>         list sensor modes for a camera
  params <cameraID> <modeID> print host camera parameters for a sensor mode

Flags:
  -cache-dir <path>  absolute cache location override
  -make <make>       filter listings by manufacturer
  -type <type>       filter listings by camera type
  -refresh           force a remote refresh for the sensors command
  -verbose           log diagnostic detail to the console
  -version           print version
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		verbose     bool
		cacheDir    string
		makeFilter  string
		typeFilter  string
		refresh     bool
	)
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&verbose, "verbose", false, "log diagnostic detail to the console")
	flag.StringVar(&cacheDir, "cache-dir", "", "absolute cache location override")
	flag.StringVar(&makeFilter, "make", "", "filter listings by manufacturer")
	flag.StringVar(&typeFilter, "type", "", "filter listings by camera type")
	flag.BoolVar(&refresh, "refresh", false, "force a remote refresh for the sensors command")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if showVersion {
		fmt.Printf("camdb %s\n", Version)
		return nil
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("no command given")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Logging.Verbose = true
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Debug("starting camdb", "version", Version)

	resolver := cachedir.NewResolver()
	if override := firstNonEmpty(cacheDir, cfg.Cache.Dir); override != "" {
		if err := resolver.SetOverride(override); err != nil {
			return err
		}
	}

	client := camdb.NewClient(cfg.API.BaseURL, cfg.Timeout(), logger)
	st := store.NewStore(resolver, logger)
	sensors := store.NewSensorStore(resolver, logger)
	defer sensors.Close()

	engine := camsync.NewEngine(client, st, sensors, logger)

	ctx := context.Background()
	listOpts := catalog.Options{Make: makeFilter, Type: typeFilter}

	switch cmd := flag.Arg(0); cmd {
	case "load":
		res, err := engine.LoadCameras(ctx)
		if err != nil {
			return userError(err)
		}
		printCameras(res.Cameras, listOpts)
		fmt.Printf("Loaded %d cameras from CamDB\n", res.Count)
		return nil

	case "cached":
		cameras, meta, err := engine.UseCached()
		if err != nil {
			return userError(err)
		}
		printCameras(cameras, listOpts)
		fmt.Printf("Loaded %d cameras from cache (%s)\n", len(cameras), meta.Summary())
		return nil

	case "update":
		res, err := engine.UpdateCache(ctx)
		if err != nil {
			return userError(err)
		}
		if res.Changed {
			fmt.Printf("Cache updated with %d cameras\n", res.Count)
		} else {
			fmt.Println("Cache is already up to date")
		}
		return nil

	case "info":
		meta, err := engine.Info()
		if err != nil {
			if errors.Is(err, domain.ErrCacheNotFound) {
				fmt.Println("No cache data available")
				return nil
			}
			return userError(err)
		}
		fmt.Println(meta.Summary())
		fmt.Printf("  version: %s\n  fingerprint: %s\n", meta.Version, meta.Fingerprint)
		return nil

	case "clear":
		if err := engine.Clear(); err != nil {
			return userError(err)
		}
		fmt.Println("Cache cleared")
		return nil

	case "search":
		if flag.NArg() < 2 {
			return errors.New("usage: camdb search <query>")
		}
		res, err := engine.Cameras(ctx)
		if err != nil {
			return userError(err)
		}
		idx := catalog.NewIndex(res.Cameras)
		matches := idx.Search(flag.Arg(1))
		for _, m := range matches {
			fmt.Printf("%6d  %s\n", m.Camera.ID, m.Camera.DisplayName())
		}
		fmt.Printf("%d matches\n", len(matches))
		return nil

	case "sensors":
		if flag.NArg() < 2 {
			return errors.New("usage: camdb sensors <cameraID>")
		}
		cameraID, err := strconv.ParseInt(flag.Arg(1), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid camera id %q", flag.Arg(1))
		}
		modes, err := engine.SensorModes(ctx, cameraID, refresh)
		if err != nil {
			return userError(err)
		}
		if len(modes) == 0 {
			fmt.Println("No sensor configurations found")
			return nil
		}
		for _, m := range modes {
			fmt.Printf("%6d  %s\n", m.ID, m.Describe())
		}
		return nil

	case "params":
		if flag.NArg() < 3 {
			return errors.New("usage: camdb params <cameraID> <modeID>")
		}
		return printParams(ctx, engine, flag.Arg(1), flag.Arg(2))

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// printParams resolves a camera + sensor mode pair, converts it and
// hands it to the creation boundary (here: stdout).
func printParams(ctx context.Context, engine *camsync.Engine, cameraArg, modeArg string) error {
	cameraID, err := strconv.ParseInt(cameraArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid camera id %q", cameraArg)
	}
	modeID, err := strconv.ParseInt(modeArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sensor mode id %q", modeArg)
	}

	res, err := engine.Cameras(ctx)
	if err != nil {
		return userError(err)
	}
	var camera domain.Camera
	found := false
	for _, c := range res.Cameras {
		if c.ID == cameraID {
			camera = c
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: id %d", domain.ErrCameraNotFound, cameraID)
	}

	modes, err := engine.SensorModes(ctx, cameraID, false)
	if err != nil {
		return userError(err)
	}
	for _, mode := range modes {
		if mode.ID == modeID {
			params, err := convert.Convert(mode)
			if err != nil {
				return err
			}
			var creator domain.CameraCreator = printCreator{}
			return creator.CreateCamera(camera, mode, params)
		}
	}
	return fmt.Errorf("%w: id %d", domain.ErrSensorModeNotFound, modeID)
}

// printCreator stands in for the host application's object-creation
// routine.
type printCreator struct{}

func (printCreator) CreateCamera(camera domain.Camera, mode domain.SensorMode, params domain.CameraParams) error {
	fmt.Printf("%s / %s\n", camera.DisplayName(), mode.ModeName)
	fmt.Printf("  aperture:   %.4f\n", params.Aperture)
	fmt.Printf("  resolution: %dx%d\n", params.ResX, params.ResY)
	if params.Aspect != nil {
		fmt.Printf("  aspect:     %g\n", *params.Aspect)
	} else {
		fmt.Println("  aspect:     (host default)")
	}
	return nil
}

func printCameras(cameras []domain.Camera, opts catalog.Options) {
	for _, c := range catalog.Filter(cameras, opts) {
		fmt.Printf("%6d  %-12s %-30s %s\n", c.ID, c.Make, c.Name, c.Type)
	}
}

func userError(err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fmt.Errorf("%s (run with -verbose for details)", fe.Message())
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
