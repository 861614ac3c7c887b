package input

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/vthunder/focuspet/internal/activity"
	"github.com/vthunder/focuspet/internal/focus"
	"github.com/vthunder/focuspet/internal/logging"
)

// Stats counts what a Feed call processed
type Stats struct {
	Frames    int
	Windows   int
	Controls  int
	Malformed int
	Sessions  []focus.Record
	Last      time.Time // timestamp of the last dispatched event
}

// Feeder pushes decoded events into a session
type Feeder struct {
	Session  *focus.Session
	Resolver *Resolver // optional
	Now      func() time.Time
}

// Feed reads events from r until EOF or ctx is done. Malformed lines and
// rejected controls are logged and skipped.
func (f *Feeder) Feed(ctx context.Context, r io.Reader) (Stats, error) {
	now := f.Now
	if now == nil {
		now = time.Now
	}
	var st Stats
	dec := NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if errors.Is(err, ErrMalformed) {
			st.Malformed++
			logging.Warn("input", "%v", err)
			continue
		}
		if err != nil {
			return st, err
		}
		at := ev.Time(now())
		st.Last = at
		if err := f.dispatch(ctx, ev, at, &st); err != nil {
			if ctx.Err() != nil || errors.Is(err, focus.ErrClosed) {
				return st, err
			}
			logging.Warn("input", "%s event: %v", ev.Type, err)
		}
	}
}

func (f *Feeder) dispatch(ctx context.Context, ev Event, at time.Time, st *Stats) error {
	s := f.Session
	switch ev.Type {
	case TypeFrame:
		st.Frames++
		sample, present := ev.Sample()
		return s.Frame(ctx, at, present, sample)
	case TypeWindow:
		st.Windows++
		w := activity.Window{URL: ev.URL, Title: ev.Title}
		if f.Resolver != nil {
			w.App = f.Resolver.Name(ev.Owner)
		} else if ev.Owner != nil {
			w.App = ev.Owner.Name
		}
		return s.WindowChanged(ctx, at, w)
	case TypeStart:
		st.Controls++
		return s.Start(ctx, at)
	case TypeStop:
		st.Controls++
		r, err := s.Stop(ctx, at)
		if err == nil {
			st.Sessions = append(st.Sessions, r)
		}
		return err
	case TypePause:
		st.Controls++
		return s.Pause(ctx, at)
	case TypeResume:
		st.Controls++
		return s.Resume(ctx, at)
	}
	st.Malformed++
	logging.Debug("input", "ignoring unknown event type %q", ev.Type)
	return nil
}
