package migration

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LoadFromDir lists every .sql file in dir except the reserved initializer
// and returns them unsorted. Directory order is not trusted; callers sort.
func LoadFromDir(fs afero.Fs, dir, initFile string) ([]Migration, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory %s: %w", dir, err)
	}

	var migrations []Migration

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sqlExt) {
			continue
		}

		if entry.Name() == initFile {
			continue
		}

		m, err := readMigration(fs, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, m)
	}

	return migrations, nil
}

// LoadInit reads the reserved initializer from dir. It returns nil and no
// error when the file does not exist.
func LoadInit(fs afero.Fs, dir, initFile string) (*Migration, error) {
	if initFile == "" {
		return nil, nil //nolint:nilnil // nil,nil signals "no initializer"
	}

	path := filepath.Join(dir, initFile)

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("checking initializer %s: %w", path, err)
	}

	if !exists {
		return nil, nil //nolint:nilnil // nil,nil signals "no initializer"
	}

	m, err := readMigration(fs, path)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func readMigration(fs afero.Fs, path string) (Migration, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Migration{}, fmt.Errorf("reading migration file %s: %w", path, err)
	}

	name := filepath.Base(path)

	return Migration{
		Name:     NameFromFile(name),
		FileName: name,
		SQL:      string(data),
		Path:     path,
	}, nil
}
