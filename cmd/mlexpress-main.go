package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mlexpress/layerbuilder"
	"github.com/jamesrr39/mlexpress/mapengine/memengine"
	"github.com/jamesrr39/mlexpress/styling"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
	"github.com/jamesrr39/mlexpress/webservices"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/pkg/profile"
)

const (
	DEFAULT_PORT   = 9000
	DEFAULT_MAP_ID = "default"
)

var logger *logpkg.Logger

func main() {
	verbose := kingpin.Flag("v", "verbose logging").Bool()
	kingpin.CommandLine.PreAction(func(ctx *kingpin.ParseContext) error {
		logLevel := logpkg.LogLevelInfo
		if *verbose {
			logLevel = logpkg.LogLevelDebug
		}
		logger = logpkg.NewLogger(os.Stderr, logLevel)
		return nil
	})

	setupCompile()
	setupServe()

	kingpin.Parse()
}

func loadRules(fs gofs.Fs, rulesFilePath string) (*mapboxglstyle.ClassificationRules, errorsx.Error) {
	if rulesFilePath == "" {
		return mapboxglstyle.DefaultClassificationRules(), nil
	}

	data, err := fs.ReadFile(rulesFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err, "rulesFilePath", rulesFilePath)
	}

	rules, err := styling.ParseClassificationRules(data)
	if err != nil {
		return nil, errorsx.Wrap(err, "rulesFilePath", rulesFilePath)
	}

	return rules, nil
}

func setupCompile() {
	cmd := kingpin.Command("compile", "compile a file of flat style properties (YAML or JSON) into a layer object")
	filePath := cmd.Arg("file", "file with the flat properties").Required().String()
	layerType := cmd.Flag("type", "layer type. One of: background, circle, line, fill, symbol, text, icon, raster, fill-extrusion, heatmap, hillshade").Default(string(mapboxglstyle.LayerTypeLine)).String()
	layerID := cmd.Flag("id", "layer ID (defaults to the file name, without the extension)").String()
	strict := cmd.Flag("strict", "fail on warnings, not only on errors").Bool()
	rulesFilePath := cmd.Flag("rules", "file with classification rules to use instead of the defaults (YAML or JSON)").String()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			var err error
			fs := gofs.NewOsFs()

			rules, err := loadRules(fs, *rulesFilePath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			data, err := fs.ReadFile(*filePath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			properties, err := styling.ParseProperties(data)
			if err != nil {
				return errorsx.Wrap(err, "filePath", *filePath)
			}

			id := *layerID
			if id == "" {
				base := filepath.Base(*filePath)
				id = base[:len(base)-len(filepath.Ext(base))]
			}

			style, diagnostics := rules.Compile(mapboxglstyle.LayerType(*layerType), properties)
			for _, warning := range diagnostics.Warnings {
				logger.Warn("%s", warning)
			}

			err = diagnostics.Err(*strict)
			if err != nil {
				return errorsx.Wrap(err)
			}

			b, err := json.MarshalIndent(mapboxglstyle.NewLayer(id, mapboxglstyle.LayerType(*layerType), style), "", "\t")
			if err != nil {
				return errorsx.Wrap(err)
			}

			_, err = fmt.Fprintln(os.Stdout, string(b))
			if err != nil {
				return errorsx.Wrap(err)
			}

			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT,
)

func setupServe() {
	cmd := kingpin.Command("serve", "serve the compile and map editing API")
	addr := cmd.Flag("addr", addrHelp).Default(fmt.Sprintf("localhost:%d", DEFAULT_PORT)).String()
	rootDir := cmd.Flag("root-dir", "directory holding map definitions and traces").Default(styling.DefaultRootDir).String()
	definitionsDir := cmd.Flag("definitions-dir", "directory with map definitions (YAML or JSON). Defaults to the 'maps' directory in the root dir").String()
	defaultMapID := cmd.Flag("default-map", "ID of the map to use when none is asked for. Defaults to the first map, by ID").String()
	rulesFilePath := cmd.Flag("rules", "file with classification rules to use instead of the defaults (YAML or JSON)").String()
	batchConcurrency := cmd.Flag("batch-concurrency", "maximum amount of layers compiled at the same time in a batch request").Default(fmt.Sprintf("%d", webservices.DefaultBatchConcurrency)).Uint()
	shouldTrace := cmd.Flag("trace", "write a trace of every request to the trace directory").Bool()
	shouldProfile := cmd.Flag("profile", "profile the server (CPU), written to the trace directory").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			var err error
			fs := gofs.NewOsFs()

			pathsConfig, err := styling.NewPathsConfig(*rootDir)
			if err != nil {
				return errorsx.Wrap(err)
			}
			if *definitionsDir != "" {
				pathsConfig.DefinitionsDir = *definitionsDir
			}

			err = pathsConfig.EnsurePaths(fs)
			if err != nil {
				return errorsx.Wrap(err)
			}

			if *shouldProfile {
				defer profile.Start(profile.ProfilePath(pathsConfig.TraceDir), profile.CPUProfile).Stop()
			}

			rules, err := loadRules(fs, *rulesFilePath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			mapSet, err := loadMapSet(fs, pathsConfig.DefinitionsDir, rules, *defaultMapID)
			if err != nil {
				return errorsx.Wrap(err)
			}

			router, err := createServer(mapSet, rules, pathsConfig, *batchConcurrency, *shouldTrace)
			if err != nil {
				return errorsx.Wrap(err)
			}

			server := httpextra.NewServerWithTimeouts()
			server.Addr = *addr
			server.Handler = router

			logger.Info("about to start serving on %q", *addr)

			err = server.ListenAndServe()
			if err != nil {
				return errorsx.Wrap(err)
			}
			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

// loadMapSet builds a map for every definition in the definitions dir. Definitions that fail to load are logged and skipped.
// With no definitions at all, the set holds one empty map.
func loadMapSet(fs gofs.Fs, definitionsDir string, rules *mapboxglstyle.ClassificationRules, defaultMapID string) (*layerbuilder.MapSet, errorsx.Error) {
	definitions, failures, err := styling.LoadMapDefinitionsFromDir(fs, definitionsDir)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	for _, failure := range failures {
		logger.Error("failed to load map definition %q. Error: %q\nStack: %s", failure.FilePath, failure.Err.Error(), failure.Err.Stack())
	}

	var maps []*layerbuilder.Map
	for _, definition := range definitions {
		name := definition.Name
		if name == "" {
			name = definition.ID
		}

		engine := memengine.NewMemEngine(name)
		engine.MarkLoaded()

		m, diagnostics, err := layerbuilder.BuildMap(definition, engine, rules, logger)
		if err != nil {
			return nil, errorsx.Wrap(err, "mapID", definition.ID)
		}

		logger.Info("loaded map %q (%d layers, %d warnings, %d errors)", definition.ID, len(definition.Layers), len(diagnostics.Warnings), len(diagnostics.Errors))
		maps = append(maps, m)
	}

	if len(maps) == 0 {
		logger.Info("no map definitions found in %q, starting with an empty map %q", definitionsDir, DEFAULT_MAP_ID)

		engine := memengine.NewMemEngine(DEFAULT_MAP_ID)
		engine.MarkLoaded()
		maps = append(maps, layerbuilder.NewMap(DEFAULT_MAP_ID, engine, rules, logger))
	}

	if defaultMapID == "" {
		defaultMapID = maps[0].GetMapID()
	}

	mapSet, err := layerbuilder.NewMapSet(maps, defaultMapID)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return mapSet, nil
}

func createServer(mapSet *layerbuilder.MapSet, rules *mapboxglstyle.ClassificationRules, pathsConfig *styling.PathsConfig, batchConcurrency uint, shouldTrace bool) (chi.Router, errorsx.Error) {
	compileCache, err := webservices.NewCompileCache()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)

	if shouldTrace {
		traceFilePath := filepath.Join(pathsConfig.TraceDir, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__03_04_05")))
		logger.Info("tracing at %q", traceFilePath)

		traceFile, err := os.Create(traceFilePath)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}

		router.Use(tracing.Middleware(tracing.NewTracer(traceFile)))
	}

	router.Route("/api/", func(r chi.Router) {
		r.Mount("/info", webservices.NewInfoService(logger, mapSet, rules))
		r.Mount("/compile", webservices.NewCompileService(logger, rules, compileCache, batchConcurrency))
		r.Mount("/maps", webservices.NewMapService(logger, mapSet))
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorsx.HTTPError(w, logger, errorsx.Errorf("no route for %s %q", r.Method, r.URL.Path), http.StatusNotFound)
	})

	return router, nil
}
