// Package client implements the high-level ACP façade: connect,
// authenticate, and issue property/feature/firmware operations over a single
// underlying session.
package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nlowe/acpctl/internal/acperrors"
	"github.com/nlowe/acpctl/internal/cflplist"
	"github.com/nlowe/acpctl/internal/config"
	"github.com/nlowe/acpctl/internal/logger"
	"github.com/nlowe/acpctl/internal/message"
	"github.com/nlowe/acpctl/internal/property"
	"github.com/nlowe/acpctl/internal/session"
	"github.com/nlowe/acpctl/internal/srp"
	"github.com/nlowe/acpctl/internal/utils"
)

// Option configures a Client at construction time.
type Option func(*options)

type options struct {
	cfgOpts []config.Option
	logFile string
}

// WithDebug enables debug-level logging on the underlying session.
func WithDebug(debug bool) Option {
	return func(o *options) { o.cfgOpts = append(o.cfgOpts, config.WithDebug(debug)) }
}

// WithNoColor forces colorless log output.
func WithNoColor(noColor bool) Option {
	return func(o *options) { o.cfgOpts = append(o.cfgOpts, config.WithNoColor(noColor)) }
}

// WithDialTimeout overrides the default TCP dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.cfgOpts = append(o.cfgOpts, config.WithDialTimeout(d)) }
}

// WithRequestTimeout overrides the default per-request read timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.cfgOpts = append(o.cfgOpts, config.WithRequestTimeout(d)) }
}

// WithConfigOptions passes additional config.Option values straight through
// to config.New, for callers that need settings not exposed by a dedicated
// With* helper above.
func WithConfigOptions(opts ...config.Option) Option {
	return func(o *options) { o.cfgOpts = append(o.cfgOpts, opts...) }
}

// WithLogFile directs diagnostic output to the given file in addition to stdout.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// Client is the high-level façade over a single ACP Session.
type Client struct {
	host     string
	port     int
	password string

	cfg *config.Config
	log logger.Interface

	session *session.Session

	authGroup singleflight.Group
}

// New constructs a disconnected Client for host:port, authenticating with
// password once Authenticate is called.
func New(host string, port int, password string, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := config.New(o.cfgOpts...)
	log := logger.New(cfg, o.logFile)

	return &Client{
		host:     host,
		port:     port,
		password: password,
		cfg:      cfg,
		log:      log,
		session:  session.New(host, port, cfg, log),
	}
}

// Session exposes the underlying transport for advanced callers (e.g. direct
// Monitor() subscription). Most callers should use the façade methods instead.
func (c *Client) Session() *session.Session {
	return c.session
}

// Connect dials the base station.
func (c *Client) Connect(ctx context.Context) error {
	start := time.Now()
	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	c.log.Debug(fmt.Sprintf("[+] Dial completed in %s", utils.DeltaTime(time.Since(start))))
	return nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.session.Close()
}

// Authenticate drives the five-stage SRP-6a handshake and, on success,
// installs the session's AES-CTR encryption context. Concurrent callers share
// one in-flight handshake via singleflight; a second caller that arrives
// while a handshake is already running blocks for, and receives, the same
// result rather than starting a second handshake.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err, _ := c.authGroup.Do("authenticate", func() (interface{}, error) {
		return nil, c.authenticate(ctx)
	})
	return err
}

func (c *Client) authenticate(ctx context.Context) error {
	start := time.Now()
	c.log.Debug(fmt.Sprintf("[>] Authenticating to %s as %q", c.host, srp.Identity))
	c.log.IncrementIndent()
	defer c.log.DecrementIndent()

	srpClient, err := srp.NewClient(c.password)
	if err != nil {
		return err
	}

	return c.session.Do(ctx, func(h *session.Handle) error {
		s2, err := c.exchangeAuth(h, srpClient.Hello())
		if err != nil {
			return err
		}

		s3, err := srpClient.HandleChallenge(s2)
		if err != nil {
			return err
		}

		s4, err := c.exchangeAuth(h, s3)
		if err != nil {
			return err
		}

		clientKey, serverKey, clientIV, serverIV, err := srpClient.HandleVerify(s4)
		if err != nil {
			return err
		}

		if err := c.session.EncryptionContext().Install(clientKey, clientIV, serverKey, serverIV); err != nil {
			return err
		}

		c.log.Info(fmt.Sprintf("[+] Authenticated to %s in %s", c.host, utils.DeltaTime(time.Since(start))))
		return nil
	})
}

// exchangeAuth sends one Auth-command CFL blob and returns the peer's decoded
// reply blob.
func (c *Client) exchangeAuth(h *session.Handle, body cflplist.Value) (cflplist.Value, error) {
	encoded, err := cflplist.ComposeBlob(body)
	if err != nil {
		return cflplist.Value{}, err
	}

	m := message.New(message.CommandAuth, 0, c.password).WithBody(encoded)
	packed, err := m.Pack()
	if err != nil {
		return cflplist.Value{}, err
	}
	if err := h.Send(packed); err != nil {
		return cflplist.Value{}, err
	}

	reply, err := h.ReceiveMessage()
	if err != nil {
		return cflplist.Value{}, err
	}
	if reply.ErrorCode != 0 {
		return cflplist.Value{}, &acperrors.ProtocolError{Command: int32(message.CommandAuth), Code: reply.ErrorCode}
	}

	return cflplist.ParseBlob(reply.Body)
}

// GetProperties queries the device for the given property tags and returns
// the populated properties in reply order.
func (c *Client) GetProperties(ctx context.Context, tags []string) ([]property.Property, error) {
	queries := make([]property.Property, 0, len(tags))
	for _, tag := range tags {
		q, err := property.NewQuery(tag)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	body, err := property.ComposeRequestList(queries)
	if err != nil {
		return nil, err
	}

	var result []property.Property
	err = c.session.Do(ctx, func(h *session.Handle) error {
		m := message.New(message.CommandGetProp, 4, c.password).WithBody(body)
		packed, err := m.Pack()
		if err != nil {
			return err
		}
		if err := h.Send(packed); err != nil {
			return err
		}

		header, err := h.ReceiveMessageHeader()
		if err != nil {
			return err
		}
		if header.ErrorCode != 0 {
			return &acperrors.ProtocolError{Command: int32(message.CommandGetProp), Code: header.ErrorCode}
		}

		result, err = c.readPropertyStream(h)
		return err
	})
	return result, err
}

// SetProperties writes the given properties to the device and returns the
// device's per-property acknowledgements.
func (c *Client) SetProperties(ctx context.Context, props []property.Property) ([]property.Property, error) {
	body, err := property.ComposeRequestList(props)
	if err != nil {
		return nil, err
	}

	var result []property.Property
	err = c.session.Do(ctx, func(h *session.Handle) error {
		m := message.New(message.CommandSetProp, 0, c.password).WithBody(body)
		packed, err := m.Pack()
		if err != nil {
			return err
		}
		if err := h.Send(packed); err != nil {
			return err
		}

		header, err := h.ReceiveMessageHeader()
		if err != nil {
			return err
		}
		if header.ErrorCode != 0 {
			return &acperrors.ProtocolError{Command: int32(message.CommandSetProp), Code: header.ErrorCode}
		}

		result, err = c.readPropertyStream(h)
		return err
	})
	return result, err
}

// readPropertyStream reads property elements directly off the wire until the
// four-NUL sentinel, surfacing the first per-property error encountered.
func (c *Client) readPropertyStream(h *session.Handle) ([]property.Property, error) {
	var props []property.Property
	for {
		name, flags, size, err := h.ReceivePropertyElementHeader()
		if err != nil {
			return props, err
		}

		p := property.Property{Name: name, Flags: flags}
		if size > 0 {
			p.Value, err = h.Receive(int(size))
			if err != nil {
				return props, err
			}
		}

		if p.IsSentinel() {
			return props, nil
		}
		if p.IsError() {
			code, _ := p.ErrorCode()
			return props, &acperrors.PropertyError{Tag: p.Name, Code: code}
		}

		props = append(props, p)
	}
}

// GetFeatures enumerates the device's supported features as a CFL tree.
func (c *Client) GetFeatures(ctx context.Context) (cflplist.Value, error) {
	var result cflplist.Value
	err := c.session.Do(ctx, func(h *session.Handle) error {
		m := message.New(message.CommandFeat, 0, "")
		packed, err := m.Pack()
		if err != nil {
			return err
		}
		if err := h.Send(packed); err != nil {
			return err
		}

		reply, err := h.ReceiveMessage()
		if err != nil {
			return err
		}
		if reply.ErrorCode != 0 {
			return &acperrors.ProtocolError{Command: int32(message.CommandFeat), Code: reply.ErrorCode}
		}

		result, err = cflplist.ParseBlob(reply.Body)
		return err
	})
	return result, err
}

// FlashPrimary uploads a primary firmware image of the given size, returning
// the device's unparsed reply body. Progress reporting, if any, is the
// caller's responsibility (see cmd/acpctl for a progressbar.v3 wrapper).
func (c *Client) FlashPrimary(ctx context.Context, image io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(image, size))
	if err != nil {
		return nil, &acperrors.TransportError{Reason: "failed to read firmware image", Err: err}
	}

	var reply []byte
	err = c.session.Do(ctx, func(h *session.Handle) error {
		m := message.New(message.CommandFlashPrimary, 0, c.password).WithBody(data)
		packed, err := m.Pack()
		if err != nil {
			return err
		}
		if err := h.Send(packed); err != nil {
			return err
		}

		resp, err := h.ReceiveMessage()
		if err != nil {
			return err
		}
		if resp.ErrorCode != 0 {
			return &acperrors.ProtocolError{Command: int32(message.CommandFlashPrimary), Code: resp.ErrorCode}
		}

		reply = resp.Body
		return nil
	})
	return reply, err
}

// Reboot is shorthand for SetProperties([acRB: 0]).
func (c *Client) Reboot(ctx context.Context) error {
	p, err := property.New("acRB", 0)
	if err != nil {
		return err
	}
	_, err = c.SetProperties(ctx, []property.Property{p})
	return err
}
