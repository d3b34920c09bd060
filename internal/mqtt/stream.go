package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"lora-monitor/internal/processor"
)

// Source turns messages on a topic into capture lines. A message holding
// several newline separated lines yields each of them in order.
type Source struct {
	lines chan string
	done  chan struct{}
	once  sync.Once
}

func NewSource(buffer int) *Source {
	if buffer <= 0 {
		buffer = 256
	}
	return &Source{
		lines: make(chan string, buffer),
		done:  make(chan struct{}),
	}
}

// Handler feeds received payloads into the source. It blocks while the
// buffer is full so the broker sees back-pressure instead of lost lines.
func (s *Source) Handler() Handler {
	return func(_ string, payload []byte) {
		for _, line := range splitLines(payload) {
			select {
			case s.lines <- line:
			case <-s.done:
				return
			}
		}
	}
}

func splitLines(payload []byte) []string {
	text := strings.TrimRight(string(payload), "\r\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

// Next implements processor.LineSource. It returns io.EOF once Close has
// been called and the buffer is drained.
func (s *Source) Next(ctx context.Context) (string, error) {
	select {
	case line := <-s.lines:
		return line, nil
	default:
	}
	select {
	case line := <-s.lines:
		return line, nil
	case <-s.done:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Source) Close() {
	s.once.Do(func() { close(s.done) })
}

type publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retain bool, payload []byte) error
}

// Publisher implements processor.Sink by publishing results as JSON.
type Publisher struct {
	Client publisher
	Topic  string
	QoS    byte
	Retain bool
}

func (p Publisher) Emit(ctx context.Context, r processor.Result) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return p.Client.Publish(ctx, p.Topic, p.QoS, p.Retain, b)
}
