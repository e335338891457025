package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mlexpress/layerbuilder"
	"github.com/jamesrr39/mlexpress/mapengine"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
)

type MapService struct {
	logger *logpkg.Logger
	mapSet *layerbuilder.MapSet
	chi.Router
}

func NewMapService(logger *logpkg.Logger, mapSet *layerbuilder.MapSet) *MapService {
	ws := &MapService{logger, mapSet, chi.NewRouter()}

	ws.Get("/{mapId}/style", ws.handleGetStyle)
	ws.Put("/{mapId}/layers/{layerId}", ws.handlePutLayer)
	ws.Patch("/{mapId}/layers/{layerId}", ws.handlePatchLayer)
	ws.Delete("/{mapId}/layers/{layerId}", ws.handleDeleteLayer)
	ws.Put("/{mapId}/sources/{sourceId}/data", ws.handlePutSourceData)

	return ws
}

type diagnosticsResponseType struct {
	Diagnostics mapboxglstyle.Diagnostics `json:"diagnostics"`
}

func (ws *MapService) getMap(w http.ResponseWriter, r *http.Request) (*layerbuilder.Map, bool) {
	mapID := chi.URLParam(r, "mapId")

	m := ws.mapSet.GetMapByID(mapID)
	if m == nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Errorf("map %q not found", mapID), http.StatusNotFound)
		return nil, false
	}

	return m, true
}

func (ws *MapService) handleGetStyle(w http.ResponseWriter, r *http.Request) {
	m, ok := ws.getMap(w, r)
	if !ok {
		return
	}

	document, ok := m.Style()
	if !ok {
		errorsx.HTTPError(w, ws.logger, errorsx.Errorf("map %q can't provide its style document", m.GetMapID()), http.StatusNotImplemented)
		return
	}

	render.JSON(w, r, document)
}

func (ws *MapService) handlePutLayer(w http.ResponseWriter, r *http.Request) {
	defer startSpan(r.Context(), "add layer")()

	m, ok := ws.getMap(w, r)
	if !ok {
		return
	}

	layerID := chi.URLParam(r, "layerId")
	layerType := mapboxglstyle.LayerType(r.URL.Query().Get("type"))
	if layerType == "" {
		errorsx.HTTPError(w, ws.logger, errorsx.Errorf("no layer type given. Set it with the 'type' query parameter"), http.StatusBadRequest)
		return
	}

	var properties mapboxglstyle.Properties
	err := render.DecodeJSON(r.Body, &properties)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	diagnostics, err := m.AddLayer(layerType, layerID, properties, r.URL.Query().Get("before"))
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), statusCodeForEngineError(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, diagnosticsResponseType{diagnostics})
}

func (ws *MapService) handlePatchLayer(w http.ResponseWriter, r *http.Request) {
	m, ok := ws.getMap(w, r)
	if !ok {
		return
	}

	layerID := chi.URLParam(r, "layerId")
	layerType := mapboxglstyle.LayerType(r.URL.Query().Get("type"))
	if layerType == "" {
		errorsx.HTTPError(w, ws.logger, errorsx.Errorf("no layer type given. Set it with the 'type' query parameter"), http.StatusBadRequest)
		return
	}

	var properties mapboxglstyle.Properties
	err := render.DecodeJSON(r.Body, &properties)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	diagnostics, err := m.Restyle(layerID, layerType, properties)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), statusCodeForEngineError(err))
		return
	}

	render.JSON(w, r, diagnosticsResponseType{diagnostics})
}

func (ws *MapService) handleDeleteLayer(w http.ResponseWriter, r *http.Request) {
	m, ok := ws.getMap(w, r)
	if !ok {
		return
	}

	err := m.Remove(chi.URLParam(r, "layerId"))
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), statusCodeForEngineError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (ws *MapService) handlePutSourceData(w http.ResponseWriter, r *http.Request) {
	m, ok := ws.getMap(w, r)
	if !ok {
		return
	}

	var data interface{}
	err := render.DecodeJSON(r.Body, &data)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	err = m.SetSourceData(chi.URLParam(r, "sourceId"), data)
	if err != nil {
		errorsx.HTTPError(w, ws.logger, errorsx.Wrap(err), statusCodeForEngineError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func statusCodeForEngineError(err error) int {
	switch errorsx.Cause(err) {
	case mapengine.ErrLayerNotFound, mapengine.ErrSourceNotFound:
		return http.StatusNotFound
	case mapengine.ErrLayerExists, mapengine.ErrSourceExists:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
