package app

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
)

// SeedFile lists schemas to publish at startup.
type SeedFile struct {
	Schemas []SeedSchema `yaml:"schemas"`
}

type SeedSchema struct {
	TenantClass string                     `yaml:"tenant_class"`
	ImportType  string                     `yaml:"import_type"`
	Fields      map[string]domain.FieldDef `yaml:"fields"`
}

// LoadSeed reads a schema seed file.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// Seed publishes every schema of f whose fields differ from the active
// version, so restarting with the same file does not bump versions.
func Seed(ctx context.Context, reg *schema.Registry, f *SeedFile) (int, error) {
	published := 0
	for _, s := range f.Schemas {
		active, err := reg.GetActive(ctx, s.TenantClass, s.ImportType)
		if err == nil && sameFields(active.Fields, s.Fields) {
			continue
		}
		if _, err := reg.Register(ctx, s.TenantClass, s.ImportType, s.Fields); err != nil {
			return published, fmt.Errorf("seed %s/%s: %w", s.TenantClass, s.ImportType, err)
		}
		published++
	}
	return published, nil
}

func sameFields(a, b map[string]domain.FieldDef) bool {
	if len(a) != len(b) {
		return false
	}
	for name, x := range a {
		y, ok := b[name]
		if !ok || x.Required != y.Required || x.Type != y.Type || len(x.Aliases) != len(y.Aliases) {
			return false
		}
		for i := range x.Aliases {
			if x.Aliases[i] != y.Aliases[i] {
				return false
			}
		}
	}
	return true
}
