package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// migration is one SQL file to run
type migration struct {
	Version string
	Path    string
}

func suffixFor(direction string) (string, error) {
	switch direction {
	case "up":
		return ".up.sql", nil
	case "down":
		return ".down.sql", nil
	}
	return "", fmt.Errorf("unknown direction %q, expected up or down", direction)
}

// plan picks the files to run. Up migrations run oldest first and skip
// applied versions; down migrations run newest first over applied versions
// only. steps limits the count, zero runs all.
func plan(files []string, applied map[string]bool, direction string, steps int) ([]migration, error) {
	suffix, err := suffixFor(direction)
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	if direction == "down" {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}

	var out []migration
	for _, file := range sorted {
		base := filepath.Base(file)
		if !strings.HasSuffix(base, suffix) {
			continue
		}
		version := strings.TrimSuffix(base, suffix)
		if applied[version] != (direction == "down") {
			continue
		}
		if steps > 0 && len(out) >= steps {
			break
		}
		out = append(out, migration{Version: version, Path: file})
	}
	return out, nil
}
