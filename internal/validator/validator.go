// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "vidvest/internal/errors"
	"vidvest/internal/models"
	"vidvest/internal/videourl"
)

// VideoURLTag is the binding tag for fields holding a video link.
const VideoURLTag = "video_url"

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation(VideoURLTag, validateVideoURL)
		_ = v.RegisterValidation("platform", validatePlatform)
	}
}

// validateVideoURL accepts any absolute http(s) URL. Unknown hosts pass here
// and are rejected later with a platform-specific error.
func validateVideoURL(fl validator.FieldLevel) bool {
	_, _, err := videourl.Normalize(fl.Field().String())
	return err == nil || errors.Is(err, apperrors.ErrUnsupportedPlatform)
}

func validatePlatform(fl validator.FieldLevel) bool {
	switch models.Platform(fl.Field().String()) {
	case models.PlatformTikTok, models.PlatformInstagram:
		return true
	}
	return false
}

// HasTag reports whether err is a validation failure on a field tagged tag.
func HasTag(err error, tag string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == tag {
			return true
		}
	}
	return false
}
