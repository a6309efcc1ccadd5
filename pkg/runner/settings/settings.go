package settings

import (
	"context"
	"errors"

	"tableflip.dev/cachemap/pkg/app"
	"tableflip.dev/cachemap/pkg/printers"
	"tableflip.dev/cachemap/pkg/session"
)

// Settings prints the preferences, one key, or updates a key when Value is
// set.
type Settings struct {
	Service *app.Service
	Printer *printers.Printer
	Key     string
	Value   *string
}

func (s *Settings) Do(ctx context.Context) error {
	if s.Key == "" {
		return s.Printer.Settings(s.Service.Session.Settings())
	}
	if s.Value != nil {
		err := s.Service.Session.UpdateSetting(ctx, s.Key, *s.Value)
		// A tab change on a closed session is persisted without a listing.
		if err != nil && !errors.Is(err, session.ErrClosed) {
			return err
		}
		if err := s.Service.Settings.Flush(); err != nil {
			return err
		}
	}
	v, err := s.Service.Session.Settings().Get(s.Key)
	if err != nil {
		return err
	}
	return s.Printer.Value(s.Key, v)
}
