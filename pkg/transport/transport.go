// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport opens byte-stream links to a gripper: a local serial
// port, a TCP serial bridge or a WebSocket bridge.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Conn is an open link. Reads return whatever bytes have arrived.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Kind identifies the link type
type Kind int

const (
	KindSerial Kind = iota
	KindTCP
	KindWebSocket
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindTCP:
		return "tcp"
	case KindWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

// Defaults
const (
	DefaultBaudRate    = 9600
	DefaultDialTimeout = 10 * time.Second
	KeepAlivePeriod    = 30 * time.Second
)

// ErrUnsupportedScheme is returned for link URLs with an unknown scheme
var ErrUnsupportedScheme = errors.New("transport: unsupported link scheme")

// Link is a parsed link string
type Link struct {
	Kind Kind
	// Address is the serial device path, the TCP host:port or the full
	// WebSocket URL
	Address string
}

func (l Link) String() string {
	return fmt.Sprintf("%s: %s", l.Kind, l.Address)
}

// ParseLink accepts a bare serial device path, serial://PATH,
// tcp://HOST:PORT, ws://… or wss://…
func ParseLink(link string) (Link, error) {
	if link == "" {
		return Link{}, errors.New("transport: empty link")
	}
	if !strings.Contains(link, "://") {
		return Link{Kind: KindSerial, Address: link}, nil
	}

	u, err := url.Parse(link)
	if err != nil {
		return Link{}, fmt.Errorf("transport: invalid link %q: %w", link, err)
	}

	switch u.Scheme {
	case "serial":
		path := u.Host + u.Path
		if path == "" {
			return Link{}, fmt.Errorf("transport: serial link %q has no device path", link)
		}
		return Link{Kind: KindSerial, Address: path}, nil
	case "tcp":
		if u.Host == "" || u.Port() == "" {
			return Link{}, fmt.Errorf("transport: tcp link %q needs host:port", link)
		}
		return Link{Kind: KindTCP, Address: u.Host}, nil
	case "ws", "wss":
		return Link{Kind: KindWebSocket, Address: link}, nil
	default:
		return Link{}, fmt.Errorf("%w: %s (use serial://, tcp://, ws:// or wss://)", ErrUnsupportedScheme, u.Scheme)
	}
}

// Options configures Open. Zero values use the defaults.
type Options struct {
	BaudRate      int
	DialTimeout   time.Duration
	Username      string
	SkipSSLVerify bool
	// Password is called for WebSocket links with a Username
	Password func() (string, error)
	Log      logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.Password == nil {
		o.Password = GetPassword
	}
	if o.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Log = l
	}
	return o
}

// Open parses link and opens it. The returned description is suitable for
// a status line.
func Open(link string, opts Options) (Conn, string, error) {
	l, err := ParseLink(link)
	if err != nil {
		return nil, "", err
	}
	opts = opts.withDefaults()
	log := opts.Log.WithField("link", l.Address)

	switch l.Kind {
	case KindSerial:
		conn, err := OpenSerial(l.Address, opts.BaudRate)
		if err != nil {
			return nil, "", err
		}
		log.WithField("baud", opts.BaudRate).Debug("serial port open")
		return conn, fmt.Sprintf("Serial: %s @ %d baud", l.Address, opts.BaudRate), nil

	case KindTCP:
		conn, err := OpenTCP(l.Address, opts.DialTimeout)
		if err != nil {
			return nil, "", err
		}
		log.Debug("tcp bridge connected")
		return conn, fmt.Sprintf("TCP: %s", l.Address), nil

	default:
		password := ""
		if opts.Username != "" {
			password, err = opts.Password()
			if err != nil {
				return nil, "", err
			}
		}
		conn, err := OpenWebSocket(l.Address, opts.Username, password, opts.SkipSSLVerify, opts.DialTimeout)
		if err != nil {
			return nil, "", err
		}
		log.Debug("websocket bridge connected")
		return conn, fmt.Sprintf("WebSocket: %s", l.Address), nil
	}
}
