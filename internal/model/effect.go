package model

import (
	"fmt"
	"strings"
)

// EffectRequest is the input to apply an AI effect on one or more images.
type EffectRequest struct {
	EffectID   string
	Parameters map[string]any
	Images     []ImagePayload
	// RequiredImages are the image parameter names that must have a payload.
	// When empty at least one image is required.
	RequiredImages []string
}

// ImagePayload is an image sent to the backend, either as raw bytes or as an
// already uploaded reference URL.
type ImagePayload struct {
	// Param is the effect parameter name this image is bound to.
	Param    string
	Data     []byte
	Filename string
	URL      string
}

// IsRaw returns true when the payload carries the image bytes.
func (i ImagePayload) IsRaw() bool { return len(i.Data) > 0 }

// Validate validates the effect request.
func (r EffectRequest) Validate() error {
	if strings.TrimSpace(r.EffectID) == "" {
		return fmt.Errorf("effect id is required: %w", ErrValidation)
	}

	if len(r.Images) == 0 {
		return fmt.Errorf("at least one image is required: %w", ErrValidation)
	}

	present := map[string]bool{}
	for i, img := range r.Images {
		if img.Param == "" {
			return fmt.Errorf("image %d param name is required: %w", i, ErrValidation)
		}
		if present[img.Param] {
			return fmt.Errorf("image param %q is repeated: %w", img.Param, ErrValidation)
		}
		if img.IsRaw() == (img.URL != "") {
			return fmt.Errorf("image %q must have either data or url: %w", img.Param, ErrValidation)
		}
		present[img.Param] = true
	}

	for _, req := range r.RequiredImages {
		if !present[req] {
			return fmt.Errorf("required image %q is missing: %w", req, ErrValidation)
		}
	}

	return nil
}
