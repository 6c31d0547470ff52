package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Settings describes where a catalog keeps its entries.
type Settings struct {
	// Database is the directory holding one metadata file per entry,
	// relative to the settings file unless absolute.
	Database string `toml:"database" yaml:"database"`
	// MetadataFile is the per-entry file name.
	MetadataFile string `toml:"metadata_file" yaml:"metadata_file"`
}

type settingsFile struct {
	Catalog Settings `toml:"catalog" yaml:"catalog"`
}

// LoadSettings reads a TOML or YAML settings file, chosen by extension.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read settings %s", path)
	}

	var f settingsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml", "":
		err = toml.Unmarshal(data, &f)
	default:
		return nil, eris.Errorf("catalog: unsupported settings format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: parse settings %s", path)
	}

	s := f.Catalog
	if s.Database == "" {
		s.Database = "database"
	}
	if s.MetadataFile == "" {
		s.MetadataFile = "metadata.json"
	}
	return &s, nil
}
