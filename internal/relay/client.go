package relay

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alxayo/go-rtmp/internal/rtmp/amf"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
	"github.com/alxayo/go-rtmp/internal/rtmp/handshake"
)

// commandMessageTypeID is the RTMP message type ID for AMF0 command messages.
const commandMessageTypeID = 20

// dialTimeout bounds the outbound TCP dial to a relay destination.
const dialTimeout = 5 * time.Second

const defaultChunkSize = 128

// RTMPClient is the outbound publish surface a Destination needs. Declared
// here (rather than imported from the client it wraps) so destination.go has
// no compile-time dependency on a concrete transport.
type RTMPClient interface {
	Connect() error
	Publish() error
	SendAudio(timestamp uint32, payload []byte) error
	SendVideo(timestamp uint32, payload []byte) error
	Close() error
}

// ClientFactory builds an unconnected RTMPClient for rawURL.
type ClientFactory func(rawURL string) (RTMPClient, error)

// client is a minimal outbound RTMP publisher: dial, simple handshake,
// connect + createStream, publish, then raw audio/video messages. One
// client per relay destination.
type client struct {
	conn   net.Conn
	writer *chunk.Writer
	reader *chunk.Reader
	url    *url.URL

	app       string
	streamKey string
	streamID  uint32

	trxMu sync.Mutex
	trxID float64
}

// DialClient implements ClientFactory against a real RTMP destination URL
// of the form rtmp://host[:port]/app/streamName.
func DialClient(rawURL string) (RTMPClient, error) {
	if !strings.HasPrefix(rawURL, "rtmp://") {
		return nil, fmt.Errorf("relay destination url must start with rtmp://")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) < 2 {
		return nil, fmt.Errorf("relay destination url must be rtmp://host/app/stream")
	}
	return &client{url: u, app: parts[0], streamKey: parts[1]}, nil
}

func (c *client) nextTrx() float64 {
	c.trxMu.Lock()
	defer c.trxMu.Unlock()
	c.trxID++
	return c.trxID
}

// Connect dials, performs the simple handshake, then connect + createStream.
func (c *client) Connect() error {
	if c.conn != nil {
		return nil
	}
	host := c.url.Host
	if !strings.Contains(host, ":") {
		host += ":1935"
	}
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.Dial("tcp", host)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	c.writer = chunk.NewWriter(conn, defaultChunkSize)
	c.reader = chunk.NewReader(conn, defaultChunkSize)

	if err := handshake.ClientHandshake(conn); err != nil {
		conn.Close()
		c.conn = nil
		return err
	}
	if err := c.sendConnect(); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}
	if err := c.waitForResult(); err != nil {
		return fmt.Errorf("connect response: %w", err)
	}
	if err := c.sendCreateStream(); err != nil {
		return fmt.Errorf("send createStream: %w", err)
	}
	if err := c.waitForResult(); err != nil {
		return fmt.Errorf("createStream response: %w", err)
	}
	return nil
}

func (c *client) sendConnect() error {
	trx := c.nextTrx()
	cmdObj := map[string]interface{}{
		"app":          c.app,
		"type":         "nonprivate",
		"tcUrl":        c.url.String(),
		"fpad":         false,
		"capabilities": 15.0,
		"flashVer":     "go-rtmp-relay",
	}
	payload, err := amf.EncodeAll("connect", trx, cmdObj)
	if err != nil {
		return err
	}
	return c.writer.WriteMessage(&chunk.Message{CSID: 3, TypeID: commandMessageTypeID, MessageStreamID: 0, Payload: payload})
}

func (c *client) sendCreateStream() error {
	trx := c.nextTrx()
	payload, err := amf.EncodeAll("createStream", trx, nil)
	if err != nil {
		return err
	}
	if err := c.writer.WriteMessage(&chunk.Message{CSID: 3, TypeID: commandMessageTypeID, MessageStreamID: 0, Payload: payload}); err != nil {
		return err
	}
	c.streamID = 1
	return nil
}

// waitForResult drains command messages until a "_result" or "_error"
// response arrives, mirroring the RTMP client's handshake-completion wait.
func (c *client) waitForResult() error {
	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		if msg.TypeID != commandMessageTypeID {
			continue
		}
		args, err := amf.DecodeAll(msg.Payload)
		if err != nil || len(args) < 1 {
			continue
		}
		cmdName, ok := args[0].(string)
		if !ok {
			continue
		}
		switch cmdName {
		case "_result":
			if len(args) >= 4 {
				if sid, ok := args[3].(float64); ok {
					c.streamID = uint32(sid)
				}
			}
			return nil
		case "_error":
			return errors.New("destination rejected command")
		}
	}
}

// Publish sends the publish command for this destination's stream key.
func (c *client) Publish() error {
	if c.conn == nil {
		return errors.New("client not connected")
	}
	payload, err := amf.EncodeAll("publish", float64(0), nil, c.streamKey, "live")
	if err != nil {
		return err
	}
	return c.writer.WriteMessage(&chunk.Message{CSID: 3, TypeID: commandMessageTypeID, MessageStreamID: c.streamID, Payload: payload})
}

func (c *client) SendAudio(ts uint32, data []byte) error {
	if c.writer == nil {
		return errors.New("client not connected")
	}
	return c.writer.WriteMessage(&chunk.Message{CSID: 6, TypeID: 8, MessageStreamID: c.streamID, Timestamp: ts, Payload: data})
}

func (c *client) SendVideo(ts uint32, data []byte) error {
	if c.writer == nil {
		return errors.New("client not connected")
	}
	return c.writer.WriteMessage(&chunk.Message{CSID: 7, TypeID: 9, MessageStreamID: c.streamID, Timestamp: ts, Payload: data})
}

func (c *client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.reader, c.writer = nil, nil, nil
	return err
}
