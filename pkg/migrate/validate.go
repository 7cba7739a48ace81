package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	markUp        = "-- +goose Up"
	markDown      = "-- +goose Down"
	markStmtBegin = "-- +goose StatementBegin"
	markStmtEnd   = "-- +goose StatementEnd"

	versionLayout = "20060102150405"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

type migrationFile struct {
	version string
	name    string
}

// scanDir lists the .sql files of dir sorted by version. Strict mode rejects
// names that goose would not pick up.
func scanDir(dir string, strict bool) ([]migrationFile, error) {
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			if strict {
				return nil, fmt.Errorf("invalid migration filename %q (expected %s_name.sql)", entry.Name(), "YYYYMMDDHHMMSS")
			}
			continue
		}
		files = append(files, migrationFile{version: m[1], name: entry.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// ValidateDir checks migration filenames, version uniqueness and goose
// annotations. A directory without migrations is rejected.
func ValidateDir(dir string) error {
	files, err := scanDir(dir, true)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	for i, file := range files {
		if i > 0 && files[i-1].version == file.version {
			return fmt.Errorf("duplicate migration version %s in %q and %q", file.version, files[i-1].name, file.name)
		}
		body, err := os.ReadFile(filepath.Join(dir, file.name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", file.name, err)
		}
		if err := checkAnnotations(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", file.name, err)
		}
	}
	return nil
}

// Versions returns the sorted migration versions found in dir.
func Versions(dir string) ([]string, error) {
	files, err := scanDir(dir, false)
	if err != nil {
		return nil, err
	}
	versions := make([]string, len(files))
	for i, file := range files {
		versions[i] = file.version
	}
	return versions, nil
}

func checkAnnotations(body string) error {
	up, down := strings.Index(body, markUp), strings.Index(body, markDown)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", markUp)
	case down < 0:
		return fmt.Errorf("missing %q", markDown)
	case down < up:
		return errors.New("down section declared before up")
	}
	if begins, ends := strings.Count(body, markStmtBegin), strings.Count(body, markStmtEnd); begins != ends {
		return fmt.Errorf("%d StatementBegin but %d StatementEnd", begins, ends)
	}
	return nil
}
