// Package preference stores UI preferences in local storage.
package preference

import (
	"context"

	"github.com/omkarjtg/ecomm/internal/application/validation"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"go.uber.org/zap"
)

// Theme is the UI color scheme
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// IsValid reports whether t is a known theme
func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}

// ThemeService reads and writes the theme key
type ThemeService struct {
	storage localstore.Store
	logger  *zap.Logger
}

// NewThemeService creates a ThemeService
func NewThemeService(storage localstore.Store, logger *zap.Logger) *ThemeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThemeService{storage: storage, logger: logger}
}

// Theme returns the stored theme, light when unset or unreadable
func (s *ThemeService) Theme(ctx context.Context) Theme {
	raw, ok, err := s.storage.Get(ctx, localstore.KeyTheme)
	if err != nil {
		s.logger.Warn("Failed to read theme", zap.Error(err))
		return ThemeLight
	}
	if t := Theme(raw); ok && t.IsValid() {
		return t
	}
	return ThemeLight
}

// SetTheme stores t
func (s *ThemeService) SetTheme(ctx context.Context, t Theme) error {
	if !t.IsValid() {
		return validation.Field("theme", "Must be one of: light dark")
	}
	return s.storage.Set(ctx, localstore.KeyTheme, string(t))
}

// Toggle flips between light and dark and returns the new theme
func (s *ThemeService) Toggle(ctx context.Context) (Theme, error) {
	next := ThemeDark
	if s.Theme(ctx) == ThemeDark {
		next = ThemeLight
	}
	return next, s.SetTheme(ctx, next)
}
