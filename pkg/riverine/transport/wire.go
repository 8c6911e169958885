// Package transport implements the ingestion and forwarding boundary of
// a riverine core: a length-prefixed JSON wire format, TCP and UDP
// listeners producing events into the stream forest, a fire-and-forget
// forwarder reusing the same format, and a Redis list source.
//
// Malformed payloads are rejected here and never enter the graph.
package transport

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// MaxFrameSize bounds a single TCP frame. Frames above this are treated
// as malformed and the connection is dropped.
const MaxFrameSize = 1 << 20

// Wire format errors.
var (
	// ErrFrameTooLarge indicates a length prefix above MaxFrameSize.
	ErrFrameTooLarge = errors.New("transport: frame exceeds maximum size")

	// ErrMissingService indicates a payload without a service field.
	ErrMissingService = errors.New("transport: event has no service")

	// ErrNegativeTTL indicates a payload with a negative ttl.
	ErrNegativeTTL = errors.New("transport: event ttl is negative")
)

// wireEvent is the JSON schema shared by TCP frames, UDP datagrams, and
// the forwarder. TTL travels as float seconds.
type wireEvent struct {
	ID          string    `json:"id,omitempty"`
	Host        string    `json:"host,omitempty"`
	Service     string    `json:"service"`
	State       string    `json:"state,omitempty"`
	Description string    `json:"description,omitempty"`
	Metric      *float64  `json:"metric,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	TTL         float64   `json:"ttl,omitempty"`
	Time        time.Time `json:"time,omitzero"`
}

func toWire(e event.Event) wireEvent {
	return wireEvent{
		ID:          e.ID,
		Host:        e.Host,
		Service:     e.Service,
		State:       e.State,
		Description: e.Description,
		Metric:      e.Metric,
		Tags:        e.Tags,
		TTL:         e.TTL.Seconds(),
		Time:        e.Time,
	}
}

func fromWire(w wireEvent) (event.Event, error) {
	if w.Service == "" {
		return event.Event{}, ErrMissingService
	}
	if w.TTL < 0 {
		return event.Event{}, ErrNegativeTTL
	}
	return event.Event{
		ID:          w.ID,
		Host:        w.Host,
		Service:     w.Service,
		State:       w.State,
		Description: w.Description,
		Metric:      w.Metric,
		Tags:        w.Tags,
		TTL:         time.Duration(w.TTL * float64(time.Second)),
		Time:        w.Time,
	}, nil
}

// Marshal encodes one event as a JSON datagram payload.
func Marshal(e event.Event) ([]byte, error) {
	return json.Marshal(toWire(e))
}

// Unmarshal decodes one JSON datagram payload.
func Unmarshal(data []byte) (event.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return event.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return fromWire(w)
}

// WriteFrame writes one length-prefixed event frame: a 4-byte big-endian
// payload length followed by the JSON payload.
func WriteFrame(w io.Writer, e event.Event) error {
	payload, err := Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed event frame. io.EOF at a frame
// boundary means the peer closed cleanly.
func ReadFrame(r io.Reader) (event.Event, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return event.Event{}, io.EOF
		}
		return event.Event{}, fmt.Errorf("read frame prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return event.Event{}, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return event.Event{}, fmt.Errorf("read frame payload: %w", err)
	}
	return Unmarshal(payload)
}
