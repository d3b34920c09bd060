package processor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LineSource yields capture lines one at a time. Next returns io.EOF when
// the stream is exhausted.
type LineSource interface {
	Next(ctx context.Context) (string, error)
}

// Sink receives results worth reporting.
type Sink interface {
	Emit(ctx context.Context, r Result) error
}

type SinkFunc func(ctx context.Context, r Result) error

func (f SinkFunc) Emit(ctx context.Context, r Result) error { return f(ctx, r) }

// MultiSink fans a result out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, r Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReaderSource reads newline separated lines from an io.Reader. There is no
// line length limit.
type ReaderSource struct {
	r *bufio.Reader
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: bufio.NewReader(r)}
}

func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Session pulls lines from Source until it is exhausted or ctx is done.
// Accepted results go to Sink; rejected ones too when ShowAll is set.
type Session struct {
	Processor Processor
	Source    LineSource
	Sink      Sink
	ShowAll   bool
	Logger    zerolog.Logger
	Now       func() time.Time

	// Observe, when set, sees every result, e.g. for metrics.
	Observe func(Result)
}

// Run returns the session counters. The error is nil on end of input and
// ctx.Err() on cancellation; malformed lines never end the loop.
func (s Session) Run(ctx context.Context) (Stats, error) {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	stats := NewStats(now())
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line, err := s.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, err
		}

		res := s.Processor.HandleLine(line)
		stats = stats.Observe(res)
		if s.Observe != nil {
			s.Observe(res)
		}
		if s.Sink == nil || !s.wants(res) {
			continue
		}
		if err := s.Sink.Emit(ctx, res); err != nil {
			s.Logger.Error().Err(err).Str("kind", res.Kind.String()).Msg("emit failed")
		}
	}
}

func (s Session) wants(r Result) bool {
	return r.Kind.Accepted() || (s.ShowAll && r.Kind == FilterRejected)
}
