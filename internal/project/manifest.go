package project

import (
	"encoding/json"
	"fmt"
	"time"

	"proofbuild/internal/services"
)

// SchemaVersion is the only manifest and script version understood.
const SchemaVersion = "1.0"

// Manifest is the completion signal written once by the uploader. Its
// presence at ManifestKey is the only trigger for processing.
type Manifest struct {
	ProjectID string             `json:"projectId"`
	Version   string             `json:"version"`
	CreatedAt time.Time          `json:"createdAt"`
	Artifacts ArtifactCollection `json:"artifacts"`
	Metadata  *ManifestMetadata  `json:"metadata,omitempty"`
}

// ManifestMetadata carries totals derived from the artifact collection.
type ManifestMetadata struct {
	TotalFiles int    `json:"totalFiles"`
	TotalSize  *int64 `json:"totalSize,omitempty"`
}

// NewManifest builds a validated manifest with derived totals.
func NewManifest(id string, artifacts ArtifactCollection, now time.Time) (Manifest, error) {
	artifacts = artifacts.Normalize()
	meta := &ManifestMetadata{TotalFiles: artifacts.Count()}
	if total := artifacts.TotalSize(); total > 0 {
		meta.TotalSize = &total
	}
	m := Manifest{
		ProjectID: id,
		Version:   SchemaVersion,
		CreatedAt: now.UTC(),
		Artifacts: artifacts,
		Metadata:  meta,
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// DecodeManifest parses and validates a manifest object body.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, services.Wrap(services.ErrValidation, "", "decode manifest", "invalid JSON", err)
	}
	if m.Version == "" {
		m.Version = SchemaVersion
	}
	m.Artifacts = m.Artifacts.Normalize()
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks the manifest schema.
func (m Manifest) Validate() error {
	if err := ValidateID(m.ProjectID); err != nil {
		return services.Wrap(services.ErrValidation, "", "validate manifest", "projectId", err)
	}
	if m.Version != SchemaVersion {
		return services.Wrap(services.ErrValidation, "", "validate manifest", fmt.Sprintf("unsupported version %q", m.Version), nil)
	}
	if m.CreatedAt.IsZero() {
		return services.Wrap(services.ErrValidation, "", "validate manifest", "createdAt is required", nil)
	}
	if err := m.Artifacts.validate(); err != nil {
		return services.Wrap(services.ErrValidation, "", "validate manifest", "", err)
	}
	if m.Metadata != nil {
		if m.Metadata.TotalFiles < 0 {
			return services.Wrap(services.ErrValidation, "", "validate manifest", "metadata.totalFiles must not be negative", nil)
		}
		if m.Metadata.TotalSize != nil && *m.Metadata.TotalSize < 0 {
			return services.Wrap(services.ErrValidation, "", "validate manifest", "metadata.totalSize must not be negative", nil)
		}
	}
	return nil
}
