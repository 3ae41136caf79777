package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ScanDirectory walks root and returns the files that classify as kind,
// sorted for narration. Files of other kinds are ignored.
func ScanDirectory(root string, kind ArtifactType, now time.Time) ([]Artifact, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	uploaded := now.UTC()
	var artifacts []Artifact
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		classified, ok := ClassifyArtifact(rel, d.Name())
		if !ok || classified != kind {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		size := fi.Size()
		artifact := Artifact{
			Type:       kind,
			Path:       rel,
			Filename:   d.Name(),
			Size:       &size,
			UploadedAt: &uploaded,
		}
		if order, ok := ExtractOrder(d.Name()); ok {
			artifact.Order = &order
		}
		artifacts = append(artifacts, artifact)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return SortArtifacts(artifacts), nil
}
