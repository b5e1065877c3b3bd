// Package config holds tinyrdb's tunables, defaulted the way the teacher's
// pager.PagerConfig and bufferpool.BufferPoolConfig default PageSize and
// MaxCachePages, with an optional YAML file overriding the defaults.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPageSize matches spec.md §3: pages are fixed 4096-byte arrays.
	DefaultPageSize = 4096
	// DefaultBufferPoolCapacity is the number of cache entries held before
	// LRU eviction begins.
	DefaultBufferPoolCapacity = 128
)

// Config collects every tunable the storage and catalog layers need.
type Config struct {
	PageSize           int    `yaml:"page_size"`
	BufferPoolCapacity int    `yaml:"buffer_pool_capacity"`
	DataFile           string `yaml:"data_file"`
	MetadataFile       string `yaml:"metadata_file"`
	CatalogFile        string `yaml:"catalog_file"`
}

// Default returns a Config with every field defaulted.
func Default() Config {
	return Config{
		PageSize:           DefaultPageSize,
		BufferPoolCapacity: DefaultBufferPoolCapacity,
		DataFile:           "tinyrdb.db",
		MetadataFile:       "tinyrdb.meta.json",
		CatalogFile:        "tinyrdb.catalog.json",
	}
}

// Load reads a YAML config file and fills in any zero-valued field from
// Default(). A missing file is not an error; Default() is returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, err
	}
	if loaded.PageSize > 0 {
		cfg.PageSize = loaded.PageSize
	}
	if loaded.BufferPoolCapacity > 0 {
		cfg.BufferPoolCapacity = loaded.BufferPoolCapacity
	}
	if loaded.DataFile != "" {
		cfg.DataFile = loaded.DataFile
	}
	if loaded.MetadataFile != "" {
		cfg.MetadataFile = loaded.MetadataFile
	}
	if loaded.CatalogFile != "" {
		cfg.CatalogFile = loaded.CatalogFile
	}
	return cfg, nil
}
