//go:build !windows && !linux

package infra

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// NewPlatform reports that this OS has no display automation adapters.
func NewPlatform(logger *zap.Logger) (*Platform, error) {
	logger.Warn("display automation is not supported on this platform")
	return UnsupportedPlatform(), domain.ErrUnsupported
}
