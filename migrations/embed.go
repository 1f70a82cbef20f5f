package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedMigrations embed.FS

// Migration filename format: 001_migration_name.up.sql / 001_migration_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// ErrNoMigrations is returned when the embedded filesystem has no migration files.
var ErrNoMigrations = errors.New("no embedded migration files found")

// migrationFS returns the embedded migration filesystem.
func migrationFS() fs.FS {
	return embeddedMigrations
}

// listMigrations returns all embedded migration files that conform to the
// strict naming standard, sorted lexicographically (which orders them by
// sequence number given zero-padded prefixes).
func listMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".sql" && migrationFilenameRegex.MatchString(name) {
			files = append(files, name)
		}
	}

	sort.Strings(files)

	return files, nil
}

// validateMigrations checks filename format, up/down pairing, and sequence
// contiguity of the embedded migrations. Run at startup so a broken build
// fails before touching the database.
func validateMigrations(fsys fs.FS) error {
	files, err := listMigrations(fsys)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return ErrNoMigrations
	}

	// pairing: sequence_name -> set of directions seen
	pairs := make(map[string]map[string]bool)
	sequences := make(map[int]bool)

	for _, file := range files {
		matches := migrationFilenameRegex.FindStringSubmatch(file)

		sequence, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("invalid sequence number in %s: %w", file, err)
		}

		key := matches[1] + "_" + matches[2]
		if pairs[key] == nil {
			pairs[key] = make(map[string]bool)
		}

		pairs[key][matches[3]] = true
		sequences[sequence] = true
	}

	for key, directions := range pairs {
		if !directions["up"] {
			return fmt.Errorf("orphaned down migration: missing up migration for %s", key)
		}

		if !directions["down"] {
			return fmt.Errorf("orphaned up migration: missing down migration for %s", key)
		}
	}

	ordered := make([]int, 0, len(sequences))
	for seq := range sequences {
		ordered = append(ordered, seq)
	}

	sort.Ints(ordered)

	if ordered[0] != 1 {
		return fmt.Errorf("migration sequence should start with 001, but found %03d", ordered[0])
	}

	for i := 1; i < len(ordered); i++ {
		if ordered[i] != ordered[i-1]+1 {
			return fmt.Errorf("gap in migration sequence: expected %03d, found %03d",
				ordered[i-1]+1, ordered[i])
		}
	}

	return nil
}
