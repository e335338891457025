package layerbuilder

import (
	"sort"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/mlexpress/mapengine"
	"github.com/jamesrr39/mlexpress/styling"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
)

type MapSet struct {
	mapsByID     map[string]*Map
	defaultMapID string
	mu           *sync.RWMutex
}

func NewMapSet(maps []*Map, defaultMapID string) (*MapSet, errorsx.Error) {
	mapSet := &MapSet{
		mapsByID:     make(map[string]*Map),
		defaultMapID: defaultMapID,
		mu:           new(sync.RWMutex),
	}

	defaultIDFound := false

	for _, m := range maps {
		mapID := m.GetMapID()
		_, ok := mapSet.mapsByID[mapID]
		if ok {
			return nil, errorsx.Errorf("duplicate map ID found: %q", mapID)
		}

		mapSet.mapsByID[mapID] = m

		if defaultMapID == mapID {
			defaultIDFound = true
		}
	}

	if !defaultIDFound {
		return nil, errorsx.Errorf("default ID %q not found in any supplied maps", defaultMapID)
	}

	return mapSet, nil
}

func (s *MapSet) GetMapByID(id string) *Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapsByID[id]
}

func (s *MapSet) GetDefaultMap() *Map {
	return s.GetMapByID(s.defaultMapID)
}

func (s *MapSet) GetDefaultMapID() string {
	return s.defaultMapID
}

// GetAllMapIDs returns the IDs of all maps, sorted
func (s *MapSet) GetAllMapIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapIDs := []string{}
	for id := range s.mapsByID {
		mapIDs = append(mapIDs, id)
	}
	sort.Strings(mapIDs)

	return mapIDs
}

func (s *MapSet) AddMap(m *Map) errorsx.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.mapsByID[m.GetMapID()]
	if ok {
		return errorsx.Errorf("duplicate map ID found: %q", m.GetMapID())
	}

	s.mapsByID[m.GetMapID()] = m
	return nil
}

// BuildMap adds the layers of a map definition to a new map on engine, bottom to top.
// Layers that fail to be added are returned as errors in the diagnostics, and the rest are still added.
func BuildMap(definition *styling.MapDefinition, engine mapengine.Engine, rules *mapboxglstyle.ClassificationRules, logger *logpkg.Logger) (*Map, mapboxglstyle.Diagnostics, errorsx.Error) {
	var diagnostics mapboxglstyle.Diagnostics

	err := definition.Validate()
	if err != nil {
		return nil, diagnostics, errorsx.Wrap(err)
	}

	m := NewMap(definition.ID, engine, rules, logger)

	for _, layerDefinition := range definition.Layers {
		layerDiagnostics, err := m.AddLayer(layerDefinition.Type, layerDefinition.ID, layerDefinition.Properties, layerDefinition.Before)
		diagnostics.Merge(layerDiagnostics)
		if err != nil {
			logger.Error("map %q: failed to add layer %q. Error: %q\nStack:\n%s", definition.ID, layerDefinition.ID, err.Error(), err.Stack())
			var notAdded mapboxglstyle.Diagnostics
			notAdded.AddError(mapboxglstyle.CodeLayerNotAdded, "", err.Error())
			diagnostics.Merge(notAdded.ForLayer(layerDefinition.ID))
		}
	}

	return m, diagnostics, nil
}
