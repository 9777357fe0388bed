package service

import (
	"errors"
	"fmt"

	"github.com/xxxsen/knowhub/internal/ai"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
)

// mapAIErr converts provider-level failures into the service taxonomy.
func mapAIErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ai.ErrUnavailable) {
		return appErr.ErrAIUnavailable
	}
	if errors.Is(err, appErr.ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %v", appErr.ErrUpstream, err)
}
