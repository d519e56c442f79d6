package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	CheckpointDirEnv   = "SAM3D_CHECKPOINT_DIR"
	StorageRootEnv     = "RUNPOD_VOLUME_PATH"
	DefaultStorageRoot = "/runpod-volume"
	PipelineConfigName = "pipeline.yaml"
)

// checkpoint layouts looked up under the storage root, in order
var checkpointLayouts = []string{
	"sam3d/checkpoints/hf",
	"sam-3d-objects/checkpoints/hf",
	"models/sam-3d-objects/checkpoints/hf",
}

const localCheckpointDir = "checkpoints/hf"

// CheckpointResolver finds the pipeline config the reconstruction model is
// built from.
type CheckpointResolver struct {
	Fs       afero.Fs
	Override string
	Root     string
}

func NewCheckpointResolver(fs afero.Fs, cfg ModelConfig) *CheckpointResolver {
	return &CheckpointResolver{
		Fs:       fs,
		Override: GetEnv(CheckpointDirEnv, cfg.CheckpointDir),
		Root:     detectStorageRoot(fs),
	}
}

func detectStorageRoot(fs afero.Fs) string {
	if root := GetEnv(StorageRootEnv, ""); root != "" {
		return root
	}
	if ok, _ := afero.DirExists(fs, DefaultStorageRoot); ok {
		return DefaultStorageRoot
	}
	return ""
}

// Candidates lists every pipeline config path in lookup order.
func (r *CheckpointResolver) Candidates() []string {
	var dirs []string
	if r.Override != "" {
		dirs = append(dirs, r.Override)
	}
	if r.Root != "" {
		for _, layout := range checkpointLayouts {
			dirs = append(dirs, filepath.Join(r.Root, layout))
		}
	}
	dirs = append(dirs, localCheckpointDir)

	paths := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		paths = append(paths, filepath.Join(dir, PipelineConfigName))
	}
	return paths
}

// Resolve returns the first candidate that exists.
func (r *CheckpointResolver) Resolve() (string, error) {
	candidates := r.Candidates()
	for _, path := range candidates {
		if ok, err := afero.Exists(r.Fs, path); err == nil && ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("Config not found at %s", candidates[0])
}
