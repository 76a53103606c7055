package io

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slok/fxtask/internal/model"
)

// EffectRequestYAMLRepository loads effect requests from YAML files.
type EffectRequestYAMLRepository struct {
	fs fs.FS
}

// NewEffectRequestYAMLRepository creates a new YAML effect request repository.
// Image paths on the requests are resolved against the same filesystem.
func NewEffectRequestYAMLRepository(filesystem fs.FS) *EffectRequestYAMLRepository {
	return &EffectRequestYAMLRepository{fs: filesystem}
}

// GetEffectRequest loads an effect request from a YAML file, reading the referenced
// local images, and returns a validated domain model.
func (r *EffectRequestYAMLRepository) GetEffectRequest(ctx context.Context, filePath string) (model.EffectRequest, error) {
	data, err := fs.ReadFile(r.fs, filePath)
	if err != nil {
		return model.EffectRequest{}, fmt.Errorf("reading effect request file: %w", err)
	}

	if ctx.Err() != nil {
		return model.EffectRequest{}, ctx.Err()
	}

	var req EffectRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return model.EffectRequest{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := req.validate(); err != nil {
		return model.EffectRequest{}, fmt.Errorf("invalid effect request: %w", err)
	}

	m, err := r.toModel(ctx, path.Dir(filePath), req)
	if err != nil {
		return model.EffectRequest{}, err
	}

	if err := m.Validate(); err != nil {
		return model.EffectRequest{}, fmt.Errorf("invalid effect request: %w", err)
	}

	return m, nil
}

// EffectRequest represents the YAML structure of an effect request.
type EffectRequest struct {
	EffectID       string         `yaml:"effect_id"`
	Parameters     map[string]any `yaml:"parameters"`
	Images         []Image        `yaml:"images"`
	RequiredImages []string       `yaml:"required_images"`
}

// Image represents the YAML structure of an image bound to an effect parameter.
type Image struct {
	Param string `yaml:"param"`
	Path  string `yaml:"path,omitempty"`
	URL   string `yaml:"url,omitempty"`
}

func (r EffectRequest) validate() error {
	if r.EffectID == "" {
		return fmt.Errorf("effect_id is required: %w", model.ErrValidation)
	}

	for i, img := range r.Images {
		if img.Param == "" {
			return fmt.Errorf("images[%d]: param is required: %w", i, model.ErrValidation)
		}
		if (img.Path == "") == (img.URL == "") {
			return fmt.Errorf("images[%d]: exactly one of path or url is required: %w", i, model.ErrValidation)
		}
	}

	return nil
}

func (r *EffectRequestYAMLRepository) toModel(ctx context.Context, baseDir string, req EffectRequest) (model.EffectRequest, error) {
	m := model.EffectRequest{
		EffectID:       req.EffectID,
		Parameters:     req.Parameters,
		RequiredImages: req.RequiredImages,
	}

	for _, img := range req.Images {
		if ctx.Err() != nil {
			return model.EffectRequest{}, ctx.Err()
		}

		if img.URL != "" {
			m.Images = append(m.Images, model.ImagePayload{Param: img.Param, URL: img.URL})
			continue
		}

		imgPath := resolvePath(baseDir, img.Path)
		data, err := fs.ReadFile(r.fs, imgPath)
		if err != nil {
			return model.EffectRequest{}, fmt.Errorf("reading image %q: %w", img.Param, err)
		}

		m.Images = append(m.Images, model.ImagePayload{
			Param:    img.Param,
			Data:     data,
			Filename: path.Base(imgPath),
		})
	}

	return m, nil
}

// resolvePath resolves image paths relative to the request file directory,
// absolute paths are mapped to the filesystem root.
func resolvePath(baseDir, p string) string {
	if path.IsAbs(p) {
		return strings.TrimPrefix(path.Clean(p), "/")
	}
	return path.Join(baseDir, p)
}
