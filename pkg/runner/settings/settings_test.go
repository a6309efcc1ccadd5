package settings

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/cachemap/pkg/app/apptest"
	"tableflip.dev/cachemap/pkg/asset"
	"tableflip.dev/cachemap/pkg/printers"
	prefs "tableflip.dev/cachemap/pkg/settings"
)

func value(v string) *string { return &v }

func TestGetSet(t *testing.T) {
	b := apptest.NewBackend(t, nil)
	svc := b.Service(t, nil)

	var buf bytes.Buffer
	p := &printers.Printer{Out: &buf, Format: printers.FormatTable}

	require.NoError(t, (&Settings{Service: svc, Printer: p, Key: prefs.Opacity, Value: value("0.5")}).Do(context.Background()))
	assert.Equal(t, "0.5\n", buf.String())
	assert.Equal(t, 0.5, svc.Settings.Current().Opacity)

	buf.Reset()
	require.NoError(t, (&Settings{Service: svc, Printer: p, Key: prefs.Columns}).Do(context.Background()))
	assert.Equal(t, "4\n", buf.String())
}

func TestSetTabOnClosedSession(t *testing.T) {
	b := apptest.NewBackend(t, nil)
	svc := b.Service(t, nil)

	s := &Settings{Service: svc, Printer: &printers.Printer{Out: &bytes.Buffer{}, Format: printers.FormatTable}, Key: prefs.CurrentTab, Value: value("canny")}
	require.NoError(t, s.Do(context.Background()))
	assert.Equal(t, "canny", svc.Settings.Current().CurrentTab)
	assert.Equal(t, asset.Canny, svc.Session.State().Category)
}

func TestUnknownKey(t *testing.T) {
	b := apptest.NewBackend(t, nil)
	s := &Settings{Service: b.Service(t, nil), Printer: printers.New(printers.FormatTable), Key: "nope", Value: value("1")}
	assert.ErrorIs(t, s.Do(context.Background()), prefs.ErrUnknownKey)
}
