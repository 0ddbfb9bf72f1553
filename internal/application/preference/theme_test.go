package preference

import (
	"context"
	"testing"

	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeService(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemory()
	svc := NewThemeService(storage, nil)

	assert.Equal(t, ThemeLight, svc.Theme(ctx), "defaults to light")

	require.NoError(t, svc.SetTheme(ctx, ThemeDark))
	assert.Equal(t, ThemeDark, svc.Theme(ctx))
	raw, _, _ := storage.Get(ctx, localstore.KeyTheme)
	assert.Equal(t, "dark", raw)

	next, err := svc.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, next)

	err = svc.SetTheme(ctx, "purple")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, ThemeLight, svc.Theme(ctx))
}

func TestThemeService_IgnoresUnknownStoredValue(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemory()
	require.NoError(t, storage.Set(ctx, localstore.KeyTheme, "neon"))

	assert.Equal(t, ThemeLight, NewThemeService(storage, nil).Theme(ctx))
}
