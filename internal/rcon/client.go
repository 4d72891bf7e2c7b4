// Package rcon implements the Source-style remote console protocol used to
// poll legacy game servers for their player list.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrAuthFailure = errors.New("rcon: authentication failed")
	ErrTimeout     = errors.New("rcon: timed out")
	ErrConnection  = errors.New("rcon: connection error")
	ErrProtocol    = errors.New("rcon: protocol error")
)

const (
	DefaultDialTimeout = 3 * time.Second
	DefaultReadTimeout = 2 * time.Second

	readChunk = 4096
)

type Options struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	return o
}

// Conn is one authenticated RCON session. It is not safe for concurrent use.
type Conn struct {
	ctx    context.Context
	conn   net.Conn
	opts   Options
	dec    Decoder
	nextID atomic.Int32
	stop   func() bool
}

// Dial connects to addr and authenticates with password. The auth response
// must echo the request id; anything else, including -1, is ErrAuthFailure.
func Dial(ctx context.Context, addr, password string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify(err)
	}

	c := &Conn{ctx: ctx, conn: nc, opts: opts}
	c.stop = context.AfterFunc(ctx, func() {
		_ = nc.SetDeadline(time.Now())
	})

	id := c.nextID.Add(1)
	if err := c.write(Packet{ID: id, Type: TypeAuth, Body: password}); err != nil {
		c.Close()
		return nil, err
	}

	resp, err := c.read()
	if err != nil {
		c.Close()
		return nil, err
	}
	if resp.ID != id {
		c.Close()
		return nil, fmt.Errorf("%w: got request id %d, want %d", ErrAuthFailure, resp.ID, id)
	}

	return c, nil
}

// Execute sends cmd with a fresh request id and returns the body of the first
// response carrying that id. Responses for other ids are discarded.
func (c *Conn) Execute(cmd string) (string, error) {
	id := c.nextID.Add(1)
	if err := c.write(Packet{ID: id, Type: TypeCommand, Body: cmd}); err != nil {
		return "", err
	}

	for {
		resp, err := c.read()
		if err != nil {
			return "", err
		}
		if resp.ID == id {
			return resp.Body, nil
		}
		log.Debug().
			Str("addr", c.conn.RemoteAddr().String()).
			Int32("id", resp.ID).
			Int32("want", id).
			Msg("rcon: discarding stray packet")
	}
}

func (c *Conn) Close() error {
	if c.stop != nil {
		c.stop()
	}
	return c.conn.Close()
}

func (c *Conn) write(p Packet) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
		return classify(err)
	}
	if _, err := c.conn.Write(Encode(p)); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Conn) read() (Packet, error) {
	chunk := make([]byte, readChunk)
	for {
		p, ok, err := c.dec.Next()
		if err != nil {
			return Packet{}, err
		}
		if ok {
			return p, nil
		}

		if err := c.ctx.Err(); err != nil {
			return Packet{}, classify(err)
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return Packet{}, classify(err)
		}
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.dec.Feed(chunk[:n])
		}
		if err != nil {
			if n > 0 {
				continue
			}
			return Packet{}, classify(err)
		}
	}
}

// Query dials, runs a single command and closes the connection.
func Query(ctx context.Context, addr, password, cmd string, opts Options) (string, error) {
	c, err := Dial(ctx, addr, password, opts)
	if err != nil {
		return "", err
	}
	defer c.Close()

	return c.Execute(cmd)
}

func classify(err error) error {
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
