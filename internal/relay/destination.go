package relay

import (
	"log/slog"
	"time"

	"github.com/alxayo/go-rtmp/internal/packet"
)

const (
	destinationQueueSize = 256
	initialBackoff       = 1 * time.Second
	maxBackoff           = 30 * time.Second
)

// destination is one outbound relay target: an app's broadcast forwarded to
// a single RTMP URL over its own client connection. It owns a bounded
// outbound queue so a slow or unreachable destination never blocks the
// publisher path; a full queue drops the packet and logs, mirroring the
// session broadcaster's lagged-subscriber semantics.
type destination struct {
	app     string
	url     string
	factory ClientFactory
	log     *slog.Logger

	queue chan packet.Packet
}

func newDestination(app, url string, factory ClientFactory, log *slog.Logger) *destination {
	return &destination{
		app:     app,
		url:     url,
		factory: factory,
		log:     log.With("relay_url", url, "app", app),
		queue:   make(chan packet.Packet, destinationQueueSize),
	}
}

// forward enqueues pkt without blocking. Called from the dispatch loop that
// fans packets out to every destination for an app.
func (d *destination) forward(pkt packet.Packet) {
	select {
	case d.queue <- pkt:
	default:
		d.log.Warn("relay destination queue full, dropping packet")
	}
}

// closeQueue signals run to drain and exit once the upstream session ends.
func (d *destination) closeQueue() { close(d.queue) }

// run dials and publishes to the destination, retrying with capped
// exponential backoff on failure, forwarding queued packets while
// connected. Exits once the queue is closed and drained.
func (d *destination) run() {
	var client RTMPClient
	backoff := initialBackoff

	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	for pkt := range d.queue {
		if client == nil {
			c, err := d.connect()
			if err != nil {
				d.log.Warn("relay destination connect failed", "error", err, "retry_in", backoff)
				time.Sleep(backoff)
				backoff = nextBackoff(backoff)
				continue // drop pkt, we were disconnected
			}
			client = c
			backoff = initialBackoff
		}

		var sendErr error
		switch pkt.Kind() {
		case packet.KindVideo:
			sendErr = client.SendVideo(pkt.Timestamp(), pkt.Payload())
		case packet.KindAudio:
			sendErr = client.SendAudio(pkt.Timestamp(), pkt.Payload())
		default:
			continue
		}
		if sendErr != nil {
			d.log.Warn("relay send failed, reconnecting", "error", sendErr)
			client.Close()
			client = nil
		}
	}
}

func (d *destination) connect() (RTMPClient, error) {
	c, err := d.factory(d.url)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(); err != nil {
		return nil, err
	}
	if err := c.Publish(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
