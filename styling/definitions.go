package styling

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/mlexpress/styling/mapboxglstyle"
	"gopkg.in/yaml.v3"
)

// LayerDefinition is a layer as a user writes it: a type and flat properties
type LayerDefinition struct {
	ID         string                   `yaml:"id" json:"id"`
	Type       mapboxglstyle.LayerType  `yaml:"type" json:"type"`
	Before     string                   `yaml:"before,omitempty" json:"before,omitempty"`
	Properties mapboxglstyle.Properties `yaml:"properties" json:"properties"`
}

// MapDefinition is a map as a user writes it, layers listed bottom to top
type MapDefinition struct {
	ID     string             `yaml:"id" json:"id"`
	Name   string             `yaml:"name,omitempty" json:"name,omitempty"`
	Layers []*LayerDefinition `yaml:"layers" json:"layers"`
}

func (md *MapDefinition) Validate() errorsx.Error {
	if md.ID == "" {
		return errorsx.Errorf("map definition has no id")
	}

	seen := make(map[string]bool)
	for i, layer := range md.Layers {
		if layer == nil {
			return errorsx.Errorf("layer %d of map %q is empty", i, md.ID)
		}
		if layer.ID == "" {
			return errorsx.Errorf("layer %d of map %q has no id", i, md.ID)
		}
		if seen[layer.ID] {
			return errorsx.Errorf("duplicate layer id %q in map %q", layer.ID, md.ID)
		}
		seen[layer.ID] = true

		if layer.Type == "" {
			return errorsx.Errorf("layer %q of map %q has no type", layer.ID, md.ID)
		}
	}

	return nil
}

// ParseMapDefinition reads a map definition in YAML (or JSON, being a subset of YAML)
func ParseMapDefinition(data []byte) (*MapDefinition, errorsx.Error) {
	definition := new(MapDefinition)
	err := yaml.Unmarshal(data, definition)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = definition.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return definition, nil
}

// ParseProperties reads a flat property set in YAML or JSON
func ParseProperties(data []byte) (mapboxglstyle.Properties, errorsx.Error) {
	var properties mapboxglstyle.Properties
	err := yaml.Unmarshal(data, &properties)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return properties, nil
}

func isDefinitionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}

type DefinitionLoadFailure struct {
	FilePath string
	Err      errorsx.Error
}

// LoadMapDefinitionsFromDir loads every definition file in dir, sorted by map ID.
// Files that fail to load are returned separately, so one bad file doesn't stop the rest loading.
func LoadMapDefinitionsFromDir(fs gofs.Fs, dir string) ([]*MapDefinition, []*DefinitionLoadFailure, errorsx.Error) {
	fileInfos, err := fs.ReadDir(dir)
	if err != nil {
		return nil, nil, errorsx.Wrap(err, "dir", dir)
	}

	var definitions []*MapDefinition
	var failures []*DefinitionLoadFailure
	seenIDs := make(map[string]string)

	for _, fileInfo := range fileInfos {
		if fileInfo.IsDir() || !isDefinitionFile(fileInfo.Name()) {
			continue
		}

		filePath := filepath.Join(dir, fileInfo.Name())
		definition, err := loadMapDefinition(fs, filePath)
		if err != nil {
			failures = append(failures, &DefinitionLoadFailure{filePath, err})
			continue
		}

		otherFilePath, ok := seenIDs[definition.ID]
		if ok {
			failures = append(failures, &DefinitionLoadFailure{
				filePath,
				errorsx.Errorf("map id %q already defined in %q", definition.ID, otherFilePath),
			})
			continue
		}
		seenIDs[definition.ID] = filePath

		definitions = append(definitions, definition)
	}

	sort.Slice(definitions, func(a, b int) bool {
		return definitions[a].ID < definitions[b].ID
	})

	return definitions, failures, nil
}

func loadMapDefinition(fs gofs.Fs, filePath string) (*MapDefinition, errorsx.Error) {
	data, err := fs.ReadFile(filePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	definition, err := ParseMapDefinition(data)
	if err != nil {
		return nil, errorsx.Wrap(err, "filePath", filePath)
	}

	return definition, nil
}

// ParseClassificationRules reads classification rules in YAML or JSON. Tables that are left out keep their defaults.
func ParseClassificationRules(data []byte) (*mapboxglstyle.ClassificationRules, errorsx.Error) {
	config := mapboxglstyle.DefaultClassificationRulesConfig()
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return mapboxglstyle.NewClassificationRules(config), nil
}
