package generation

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	avatarMinInputImages = 3
	avatarMaxInputImages = 5
)

// ValidateRequest runs the capability-specific request checks. A request
// that fails here never reaches a provider and never consumes a quota unit.
func ValidateRequest(req Request) error {
	if req.UserID == uuid.Nil {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if !req.Capability.Valid() {
		return &ValidationError{Field: "capability", Reason: fmt.Sprintf("unknown capability %q", req.Capability)}
	}

	switch req.Capability {
	case CapabilityText:
		if req.Prompt == "" {
			return &ValidationError{Field: "prompt", Reason: "required for text generation"}
		}
	case CapabilityImage:
		if req.Prompt == "" {
			return &ValidationError{Field: "prompt", Reason: "required for image generation"}
		}
		if err := validateDimensions(req.Style); err != nil {
			return err
		}
	case CapabilityAvatar:
		if n := len(req.Style.InputImages); n < avatarMinInputImages || n > avatarMaxInputImages {
			return &ValidationError{
				Field:  "input_images",
				Reason: fmt.Sprintf("avatar generation requires %d-%d input images, got %d", avatarMinInputImages, avatarMaxInputImages, n),
			}
		}
		if !req.ConsentGiven {
			return &ValidationError{Field: "consent_given", Reason: "explicit consent is required for avatar generation"}
		}
	case CapabilityVideo:
		if req.Prompt == "" {
			return &ValidationError{Field: "payload", Reason: "a recording reference or script is required for video generation"}
		}
	}

	return nil
}

func validateDimensions(s StyleOptions) error {
	if s.Width == 0 && s.Height == 0 {
		return nil
	}
	if s.Width < 0 || s.Height < 0 {
		return &ValidationError{Field: "dimensions", Reason: "width and height must be positive"}
	}
	if (s.Width == 0) != (s.Height == 0) {
		return &ValidationError{Field: "dimensions", Reason: "width and height must be set together"}
	}
	return nil
}
