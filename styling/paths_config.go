package styling

import (
	"path/filepath"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/userextra"
)

const DefaultRootDir = "~/.local/share/github.com/jamesrr39/mlexpress/"

type PathsConfig struct {
	DefinitionsDir string
	TraceDir       string
}

// NewPathsConfig lays out the directories under rootDir. A leading "~/" is expanded to the user's home directory.
func NewPathsConfig(rootDir string) (*PathsConfig, errorsx.Error) {
	expandedRootDir, err := userextra.ExpandUser(rootDir)
	if err != nil {
		return nil, errorsx.Wrap(err, "rootDir", rootDir)
	}

	return &PathsConfig{
		DefinitionsDir: filepath.Join(expandedRootDir, "maps"),
		TraceDir:       filepath.Join(expandedRootDir, "trace"),
	}, nil
}

func (pc *PathsConfig) EnsurePaths(fs gofs.Fs) errorsx.Error {
	for _, dirPath := range []string{pc.DefinitionsDir, pc.TraceDir} {
		err := fs.MkdirAll(dirPath, 0755)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	return nil
}
