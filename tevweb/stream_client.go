package tevweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bernerdschaefer/eventsource"
	"github.com/peterbourgon/unixtransport"
	"github.com/tevtrace/tev/tevjson"
)

// StreamClient consumes a remote [StreamServer] and forwards its records to
// a channel. The URI may use http, https, or, via unixtransport, the
// http+unix scheme for servers listening on Unix domain sockets.
type StreamClient struct {
	// URI of the remote stream endpoint. Required.
	URI string

	// RemoteBuffer is the per-subscriber channel buffer requested from the
	// server. Default 100.
	RemoteBuffer int

	// Kind restricts the stream to records of one kind, e.g. "event".
	// Default all kinds.
	Kind string

	// RetryInterval between reconnect attempts. Default 1s.
	RetryInterval time.Duration

	// OnRead, if set, is called with the type and data of every received
	// server-sent event.
	OnRead func(eventType string, data []byte)
}

// NewStreamClient constructs a stream client for the given URI.
func NewStreamClient(uri string) *StreamClient {
	return &StreamClient{
		URI: uri,
	}
}

// NewTransport returns an http.Transport with the http+unix scheme
// registered, suitable for reaching stream servers on Unix sockets.
func NewTransport() *http.Transport {
	t := &http.Transport{}
	unixtransport.Register(t)
	return t
}

// Stream records from the remote server to the provided channel. Stream
// reconnects on transient failures and returns when the context is canceled
// or a non-recoverable error occurs.
func (c *StreamClient) Stream(ctx context.Context, ch chan<- tevjson.Record) error {
	uri, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("parse URI: %w", err)
	}

	query := uri.Query()
	if c.RemoteBuffer > 0 {
		query.Set("buf", strconv.Itoa(c.RemoteBuffer))
	}
	if c.Kind != "" {
		query.Set("kind", c.Kind)
	}
	uri.RawQuery = query.Encode()

	// Explicitly don't attach the context to the request: EventSource reuses
	// the request across reconnects and treats context cancelation as a
	// recoverable error. Cancelation is handled by closing the source.
	req, err := http.NewRequest("GET", uri.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	retry := c.RetryInterval
	if retry <= 0 {
		retry = time.Second
	}

	es := eventsource.New(req, retry)
	go func() {
		<-ctx.Done()
		es.Close()
	}()

	for {
		ev, err := es.Read()
		if errors.Is(err, eventsource.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read server-sent event: %w", err)
		}

		if c.OnRead != nil {
			c.OnRead(ev.Type, ev.Data)
		}

		if ev.Type != "record" {
			continue
		}

		var rec tevjson.Record
		if err := json.Unmarshal(ev.Data, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case ch <- rec:
			// OK
		}
	}
}
