// Package tevweb exposes a live trace record stream over HTTP, as
// server-sent events, and provides the matching client. It is a viewing
// surface over the record stream, not part of the recording core: the engine
// only ever talks to its [tev.Writer].
package tevweb

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bernerdschaefer/eventsource"
	"github.com/tevtrace/tev/tevjson"
	"github.com/tevtrace/tev/tevstream"
)

// StreamServer is an http.Handler that streams broker records to each client
// as server-sent events of type "record".
type StreamServer struct {
	b *tevstream.Broker
}

// NewStreamServer constructs a stream server over the given broker.
func NewStreamServer(b *tevstream.Broker) *StreamServer {
	return &StreamServer{
		b: b,
	}
}

func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}

	if !requestExplicitlyAccepts(r, "text/event-stream") {
		http.Error(w, "request must Accept: text/event-stream", http.StatusPreconditionRequired)
		return
	}

	var (
		ctx   = r.Context()
		buf   = parseDefault(r.URL.Query().Get("buf"), strconv.Atoi, 100)
		kind  = r.URL.Query().Get("kind")
		c     = make(chan tevjson.Record, buf)
		allow func(tevjson.Record) bool
	)

	if kind != "" {
		allow = func(rec tevjson.Record) bool { return rec.Kind == kind }
	}

	subscribed := make(chan struct{})
	go func() {
		defer close(subscribed)
		s.b.Subscribe(ctx, allow, c)
	}()
	defer func() { <-subscribed }()

	eventsource.Handler(func(lastID string, encoder *eventsource.Encoder, stop <-chan bool) {
		var seq uint64
		for {
			select {
			case rec := <-c:
				seq++
				data, err := json.Marshal(rec)
				if err != nil {
					continue
				}
				if err := encoder.Encode(eventsource.Event{
					Type: "record",
					ID:   strconv.FormatUint(seq, 10),
					Data: data,
				}); err != nil {
					return
				}

			case <-ctx.Done():
				return

			case <-stop:
				return
			}
		}
	}).ServeHTTP(w, r)
}

//
//
//

func requestExplicitlyAccepts(r *http.Request, contentType string) bool {
	for _, accept := range r.Header.Values("Accept") {
		if accept == contentType {
			return true
		}
	}
	return false
}

func parseDefault[T any](s string, parse func(string) (T, error), def T) T {
	if v, err := parse(s); err == nil {
		return v
	}
	return def
}
