package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mlexpress/layerbuilder"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
)

func NewInfoService(logger *logpkg.Logger, mapSet *layerbuilder.MapSet, rules *mapboxglstyle.ClassificationRules) *InfoService {
	if rules == nil {
		rules = mapboxglstyle.DefaultClassificationRules()
	}

	ws := &InfoService{logger, mapSet, rules, chi.NewRouter()}
	ws.Get("/", ws.handleGet)

	return ws
}

type InfoService struct {
	logger *logpkg.Logger
	mapSet *layerbuilder.MapSet
	rules  *mapboxglstyle.ClassificationRules
	chi.Router
}

type mapsType struct {
	DefaultMapID string   `json:"defaultMapId"`
	MapIDs       []string `json:"mapIds"`
}

type infoType struct {
	Maps                mapsType                                `json:"maps"`
	LayerTypes          []mapboxglstyle.LayerType               `json:"layerTypes"`
	ClassificationRules mapboxglstyle.ClassificationRulesConfig `json:"classificationRules"`
}

func (ws *InfoService) handleGet(w http.ResponseWriter, r *http.Request) {
	maps := mapsType{
		ws.mapSet.GetDefaultMapID(),
		ws.mapSet.GetAllMapIDs(),
	}

	render.JSON(w, r, infoType{maps, mapboxglstyle.AllLayerTypes, ws.rules.Config()})
}
