package generation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/upb/genai-gateway/services/providers"
)

const (
	MaxPromptLength = 10000
	MinDimension    = 256
	MaxDimension    = 2048
	MinSteps        = 1
	MaxSteps        = 50
)

// ValidateImageRequest rejects bad input before any upstream I/O
func ValidateImageRequest(req providers.ImageRequest) error {
	if err := ValidatePrompt(req.Prompt); err != nil {
		return err
	}
	if err := ValidateDimensions(req.Width, req.Height); err != nil {
		return err
	}
	if req.Steps != nil {
		if err := ValidateSteps(*req.Steps); err != nil {
			return err
		}
	}
	return nil
}

func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return providers.ErrInvalidPrompt("prompt is required")
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return providers.ErrInvalidPrompt(fmt.Sprintf("prompt exceeds %d characters", MaxPromptLength))
	}
	return nil
}

func ValidateDimensions(width, height int) error {
	if width < MinDimension || width > MaxDimension || height < MinDimension || height > MaxDimension {
		return providers.ErrInvalidDimensions(fmt.Sprintf("width and height must be between %d and %d", MinDimension, MaxDimension))
	}
	return nil
}

func ValidateSteps(steps int) error {
	if steps < MinSteps || steps > MaxSteps {
		return providers.ErrInvalidParams("steps", fmt.Sprintf("steps must be between %d and %d", MinSteps, MaxSteps))
	}
	return nil
}
