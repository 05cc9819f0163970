package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/voxinfinitus/kaa/internal/log"
)

// Publisher receives every parsed inbound line. The dispatcher's mailbox
// satisfies this; declaring it here keeps the transport free of any
// dependency on the dispatch side.
type Publisher interface {
	Publish(ctx Context)
}

// Config holds the transport settings for one server connection.
type Config struct {
	Host     string
	Port     int
	Password string
	SSL      bool
	Timeout  time.Duration
	Nick     string
	Realname string
	Channels []string
}

// Client owns the socket, registers with the server, and publishes every
// parsed line to its Publisher. Writes are serialized so handlers on different
// workers can send concurrently.
type Client struct {
	cfg    Config
	box    Publisher
	logger *slog.Logger

	writeMu sync.Mutex
	conn    net.Conn
}

// NewClient creates a client that publishes parsed lines to box.
func NewClient(cfg Config, box Publisher) *Client {
	return &Client{
		cfg:    cfg,
		box:    box,
		logger: log.WithComponent("irc"),
	}
}

// Connect dials the server, registers the nick, and starts the background
// reader. It returns once registration commands are written; joins happen
// when the welcome numeric arrives.
func (c *Client) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	dialer := &net.Dialer{Timeout: c.cfg.Timeout}

	var conn net.Conn
	var err error
	if c.cfg.SSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: c.cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	c.conn = conn
	c.logger.Info("connected", "addr", addr, "ssl", c.cfg.SSL)

	if c.cfg.Password != "" {
		if err := c.Send("PASS %s", c.cfg.Password); err != nil {
			return err
		}
	}
	if err := c.Send("NICK %s", c.cfg.Nick); err != nil {
		return err
	}
	if err := c.Send("USER %s 0 * :%s", c.cfg.Nick, c.cfg.Realname); err != nil {
		return err
	}

	go c.readLoop(ctx)
	return nil
}

// readLoop reads lines until the connection drops or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context) {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if c.cfg.Timeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
		}

		line := scanner.Text()
		c.logger.Debug("recv", "line", line)
		parsed := ParseLine(line)
		c.handleProtocol(parsed)
		c.box.Publish(parsed)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Error("connection lost", "error", err)
	}
}

// handleProtocol answers the small set of verbs the transport owns itself.
func (c *Client) handleProtocol(ctx Context) {
	switch ctx.Command {
	case "PING":
		if err := c.Send("PONG :%s", ctx.Message); err != nil {
			c.logger.Error("pong failed", "error", err)
		}
	case "001":
		for _, ch := range c.cfg.Channels {
			if err := c.Send("JOIN %s", ch); err != nil {
				c.logger.Error("join failed", "channel", ch, "error", err)
			}
		}
	}
}

// SendMessage delivers text to a channel or nick. action wraps the text in a
// CTCP ACTION; notice uses NOTICE instead of PRIVMSG.
func (c *Client) SendMessage(recipient, text string, action, notice bool) error {
	verb := "PRIVMSG"
	if notice {
		verb = "NOTICE"
	}
	if action {
		text = "\x01ACTION " + text + "\x01"
	}
	return c.Send("%s %s :%s", verb, recipient, text)
}

// Send writes one raw IRC line, appending CRLF. Safe for concurrent use.
func (c *Client) Send(format string, args ...any) error {
	line := fmt.Sprintf(format, args...)
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("line contains CR/LF: %q", line)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	if _, err := c.conn.Write([]byte(line + "\r\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
