package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMergesOverDefaults(t *testing.T) {
	got := Decode([]byte(`{"columns":6,"blendMode":"multiply"}`))
	want := Defaults()
	want.Columns = 6
	want.BlendMode = "multiply"
	assert.Equal(t, want, got)
}

func TestDecodeCorruptFallsBack(t *testing.T) {
	assert.Equal(t, Defaults(), Decode([]byte(`{"columns":`)))
	assert.Equal(t, Defaults(), Decode(nil))
}

func TestDecodeClamps(t *testing.T) {
	got := Decode([]byte(`{"opacity":3,"columns":0,"badgeSize":40}`))
	assert.Equal(t, 1.0, got.Opacity)
	assert.Equal(t, 1, got.Columns)
	assert.Equal(t, 16, got.BadgeSize)
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.False(t, d.OverlayEnabled)
	assert.True(t, d.ShowTagBadges)
	assert.Equal(t, "luminosity", d.BlendMode)
	assert.Len(t, d.Modes(), 16)
	assert.Equal(t, 0.25, d.Opacity)
	assert.Equal(t, 4, d.Columns)
	assert.Equal(t, 9, d.BadgeSize)
	assert.True(t, d.CacheBusting)
	assert.Equal(t, "depth", d.CurrentTab)
}

func TestSetAndGet(t *testing.T) {
	s := Defaults()
	for _, tc := range []struct {
		key, value, want string
	}{
		{Opacity, "0.5", "0.5"},
		{Opacity, "-2", "0"},
		{Columns, "12", "8"},
		{BadgeSize, "2", "8"},
		{OverlayEnabled, "true", "true"},
		{CurrentTab, "canny", "canny"},
	} {
		var err error
		s, err = s.Set(tc.key, tc.value)
		require.NoError(t, err, tc.key)
		got, err := s.Get(tc.key)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.key)
	}

	_, err := s.Set("nope", "1")
	assert.ErrorIs(t, err, ErrUnknownKey)
	_, err = s.Set(Columns, "wide")
	assert.Error(t, err)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	assert.Equal(t, Defaults(), store.Load())

	s := Defaults()
	s.Columns = 7
	require.NoError(t, store.Save(s))
	assert.Equal(t, s, NewDiskStore(store.d.BasePath).Load())
}

func TestCommitterSavesDiscreteImmediately(t *testing.T) {
	store := NewMemoryStore(nil)
	c := NewCommitter(store, time.Hour, nil)

	_, err := c.Set(BlendMode, "screen")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, "screen", store.Load().BlendMode)
}

func TestCommitterCoalescesContinuous(t *testing.T) {
	store := NewMemoryStore(nil)
	c := NewCommitter(store, 30*time.Millisecond, nil)
	committed := make(chan []string, 4)
	c.OnCommit(func(_ Settings, keys []string) { committed <- keys })

	for _, v := range []string{"0.3", "0.4", "0.5"} {
		_, err := c.Set(Opacity, v)
		require.NoError(t, err)
	}
	_, err := c.Set(Columns, "5")
	require.NoError(t, err)
	assert.Equal(t, 0.5, c.Current().Opacity)
	assert.Equal(t, 0, store.Saves())

	select {
	case keys := <-committed:
		assert.Equal(t, []string{Columns, Opacity}, keys)
	case <-time.After(2 * time.Second):
		t.Fatal("settings never committed")
	}
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, 0.5, store.Load().Opacity)
}

func TestCommitterFlush(t *testing.T) {
	store := NewMemoryStore(nil)
	c := NewCommitter(store, time.Hour, nil)

	_, err := c.Set(BadgeSize, "12")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 12, store.Load().BadgeSize)
	require.NoError(t, c.Flush())
	assert.Equal(t, 1, store.Saves())
}
