package webservices

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mlexpress/styling"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
	"github.com/jamesrr39/semaphore"
)

const (
	DefaultBatchConcurrency = 4
	compileCacheTTL         = 30 * time.Minute
)

// NewCompileCache creates the cache compiled styles are kept in, keyed by layer type and properties
func NewCompileCache() (*ristretto.Cache, errorsx.Error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,     // number of keys to track frequency of (100k)
		MaxCost:     1 << 26, // maximum cost of cache (64MB)
		BufferItems: 64,      // number of keys per Get buffer
	})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return cache, nil
}

type CompileService struct {
	logger           *logpkg.Logger
	rules            *mapboxglstyle.ClassificationRules
	cache            *ristretto.Cache
	batchConcurrency uint
	chi.Router
}

func NewCompileService(logger *logpkg.Logger, rules *mapboxglstyle.ClassificationRules, cache *ristretto.Cache, batchConcurrency uint) *CompileService {
	if rules == nil {
		rules = mapboxglstyle.DefaultClassificationRules()
	}
	if batchConcurrency == 0 {
		batchConcurrency = DefaultBatchConcurrency
	}

	ws := &CompileService{logger, rules, cache, batchConcurrency, chi.NewRouter()}
	ws.Post("/", ws.handleCompileBatch)
	ws.Post("/{layerType}", ws.handleCompile)

	return ws
}

type compileResultType struct {
	Layer       *mapboxglstyle.Layer      `json:"layer"`
	Diagnostics mapboxglstyle.Diagnostics `json:"diagnostics"`
}

type cachedCompileType struct {
	style       *mapboxglstyle.CompiledStyle
	diagnostics mapboxglstyle.Diagnostics
}

func (ws *CompileService) handleCompile(w http.ResponseWriter, r *http.Request) {
	defer startSpan(r.Context(), "compile")()

	layerType := mapboxglstyle.LayerType(chi.URLParam(r, "layerType"))
	layerID := r.URL.Query().Get("id")
	if layerID == "" {
		layerID = string(layerType)
	}

	var properties mapboxglstyle.Properties
	err := render.DecodeJSON(r.Body, &properties)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	result, err := ws.compile(layerID, layerType, properties)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusInternalServerError)
		return
	}

	if isStrict(r) {
		err = result.Diagnostics.Err(true)
		if err != nil {
			errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err, "layerID", layerID), http.StatusBadRequest)
			return
		}
	}

	render.JSON(w, r, result)
}

func (ws *CompileService) handleCompileBatch(w http.ResponseWriter, r *http.Request) {
	defer startSpan(r.Context(), "compile batch")()

	var layerDefinitions []*styling.LayerDefinition
	err := render.DecodeJSON(r.Body, &layerDefinitions)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	for i, layerDefinition := range layerDefinitions {
		if layerDefinition == nil || layerDefinition.ID == "" || layerDefinition.Type == "" {
			errorsx.HTTPError(w, ws.logger, errorsx.Errorf("layer %d needs an id and a type", i), http.StatusBadRequest)
			return
		}
	}

	results := make([]*compileResultType, len(layerDefinitions))
	errs := make([]errorsx.Error, len(layerDefinitions))

	sema := semaphore.NewSemaphore(ws.batchConcurrency)
	for i, layerDefinition := range layerDefinitions {
		sema.Add()
		go func(i int, layerDefinition *styling.LayerDefinition) {
			defer sema.Done()
			results[i], errs[i] = ws.compile(layerDefinition.ID, layerDefinition.Type, layerDefinition.Properties)
		}(i, layerDefinition)
	}
	sema.Wait()

	for i, err := range errs {
		if err != nil {
			errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err, "layerID", layerDefinitions[i].ID), http.StatusInternalServerError)
			return
		}
	}

	if isStrict(r) {
		for _, result := range results {
			err = result.Diagnostics.Err(true)
			if err != nil {
				errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err, "layerID", result.Layer.ID), http.StatusBadRequest)
				return
			}
		}
	}

	render.JSON(w, r, results)
}

func (ws *CompileService) compile(layerID string, layerType mapboxglstyle.LayerType, properties mapboxglstyle.Properties) (*compileResultType, errorsx.Error) {
	cacheKey, err := compileCacheKey(layerType, properties)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	cached, ok := ws.getCached(cacheKey)
	if !ok {
		style, diagnostics := ws.rules.Compile(layerType, properties)
		cached = &cachedCompileType{style, diagnostics}

		ws.cache.SetWithTTL(cacheKey, cached, int64(len(cacheKey)), compileCacheTTL)
	}

	return &compileResultType{
		Layer:       mapboxglstyle.NewLayer(layerID, layerType, cached.style),
		Diagnostics: cached.diagnostics.ForLayer(layerID),
	}, nil
}

func (ws *CompileService) getCached(cacheKey string) (*cachedCompileType, bool) {
	cachedVal, found := ws.cache.Get(cacheKey)
	if !found {
		return nil, false
	}

	cached, ok := cachedVal.(*cachedCompileType)
	return cached, ok
}

// compileCacheKey is the layer type and the properties as JSON. encoding/json writes map keys in sorted order,
// so the same properties always give the same key.
func compileCacheKey(layerType mapboxglstyle.LayerType, properties mapboxglstyle.Properties) (string, errorsx.Error) {
	b, err := json.Marshal(properties)
	if err != nil {
		return "", errorsx.Wrap(err)
	}

	return string(layerType) + "|" + string(b), nil
}

func isStrict(r *http.Request) bool {
	switch r.URL.Query().Get("strict") {
	case "1", "true":
		return true
	default:
		return false
	}
}
