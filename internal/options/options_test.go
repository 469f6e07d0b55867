// ABOUTME: Tests for client settings defaults, validation and persistence
// ABOUTME: Uses the mock store to inject stored values and write failures

package options

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/threadsync/internal/store"
)

func TestDefaults_AreValid(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	assert.False(t, d.HideRecursively)
	assert.Equal(t, 100, d.LastN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"empty lang", func(o *Options) { o.Lang = "" }},
		{"bad inline fit", func(o *Options) { o.InlineFit = "stretch" }},
		{"bad thumbs", func(o *Options) { o.Thumbs = "huge" }},
		{"bad theme", func(o *Options) { o.Theme = "neon" }},
		{"lastN too small", func(o *Options) { o.LastN = 1 }},
		{"lastN too large", func(o *Options) { o.LastN = 10000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Defaults()
			tt.mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalid)
		})
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "hideRecursively")
	assert.Contains(t, keys, "theme")
	assert.Len(t, keys, 17)
	assert.IsIncreasing(t, keys)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMockStore()

	o := Defaults()
	o.HideRecursively = true
	o.Theme = "ashita"
	o.LastN = 50
	require.NoError(t, Save(ctx, s, o))

	got, err := Load(ctx, s, nil)
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestLoad_EmptyStoreGivesDefaults(t *testing.T) {
	got, err := Load(context.Background(), store.NewMockStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestLoad_BadStoredValuesFallBackPerField(t *testing.T) {
	ctx := context.Background()
	s := store.NewMockStore()
	require.NoError(t, store.PutOption(ctx, s, "theme", []byte(`"neon"`)))
	require.NoError(t, store.PutOption(ctx, s, "lastN", []byte(`"lots"`)))
	require.NoError(t, store.PutOption(ctx, s, "hideRecursively", []byte(`true`)))
	require.NoError(t, store.PutOption(ctx, s, "removedSetting", []byte(`1`)))

	got, err := Load(ctx, s, nil)
	require.NoError(t, err)
	assert.Equal(t, "moe", got.Theme)
	assert.Equal(t, 100, got.LastN)
	assert.True(t, got.HideRecursively)
}

func TestSave_RejectsInvalid(t *testing.T) {
	s := store.NewMockStore()
	o := Defaults()
	o.Theme = "neon"

	assert.ErrorIs(t, Save(context.Background(), s, o), ErrInvalid)

	keys, err := s.Keys(context.Background(), store.CollectionOptions)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSave_StoreFailureIsReturned(t *testing.T) {
	s := store.NewMockStore()
	s.FailWrites(errors.New("quota exceeded"))

	err := Save(context.Background(), s, Defaults())
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, store.CollectionOptions, se.Collection)
}

func TestSet(t *testing.T) {
	o := Defaults()

	require.NoError(t, o.Set("hideRecursively", "true"))
	assert.True(t, o.HideRecursively)

	require.NoError(t, o.Set("theme", "tavern"))
	assert.Equal(t, "tavern", o.Theme)

	require.NoError(t, o.Set("lastN", "250"))
	assert.Equal(t, 250, o.LastN)

	assert.ErrorIs(t, o.Set("theme", "neon"), ErrInvalid)
	assert.Equal(t, "tavern", o.Theme, "failed set leaves value unchanged")

	assert.ErrorIs(t, o.Set("volume", "11"), ErrInvalid)
	assert.ErrorIs(t, o.Set("imageHover", "maybe"), ErrInvalid)
}
