package prompt

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	color.NoColor = true
}

func TestConfirmPreApproved(t *testing.T) {
	term := New(true, zap.NewNop())
	term.Interactive = false

	ok, err := term.Confirm(context.Background(), "Delete a from depth?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmNotInteractive(t *testing.T) {
	term := New(false, zap.NewNop())
	term.Interactive = false

	ok, err := term.Confirm(context.Background(), "Delete a from depth?")
	assert.ErrorIs(t, err, ErrNotInteractive)
	assert.False(t, ok)
}

func TestConfirmCanceledContext(t *testing.T) {
	term := New(true, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := term.Confirm(ctx, "Delete?")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAlert(t *testing.T) {
	var buf bytes.Buffer
	term := New(false, zap.NewNop())
	term.Err = &buf

	term.Alert("file in use")
	assert.Equal(t, "! file in use\n", buf.String())
}
