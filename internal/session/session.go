// Package session implements the single-session ACP transport: a TCP
// connection, a contiguous receive buffer, a weight-1 request queue that
// serialises command/response exchanges, and a demultiplexer that peels
// unsolicited monitor frames off the buffer head between exchanges.
package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nlowe/acpctl/internal/acperrors"
	"github.com/nlowe/acpctl/internal/cflplist"
	"github.com/nlowe/acpctl/internal/cipher"
	"github.com/nlowe/acpctl/internal/config"
	"github.com/nlowe/acpctl/internal/logger"
	"github.com/nlowe/acpctl/internal/message"
	"github.com/nlowe/acpctl/internal/property"
)

// monitorMagic prefixes every unsolicited monitor frame: a 2-byte sentinel
// followed by 2 reserved bytes, then a big-endian u32 body length, then that
// many CFLBinaryPList blob bytes.
var monitorMagic = [2]byte{'X', 'E'}

const monitorHeaderSize = 8

// Session owns one TCP connection to an ACP base station and the cooperative
// request queue layered over it.
type Session struct {
	ID   string
	host string
	port int
	cfg  *config.Config
	log  logger.Interface

	enc *cipher.EncryptionContext

	mu        sync.Mutex
	cond      *sync.Cond
	conn      net.Conn
	connected bool
	closed    bool
	fatal     error
	recvBuf   []byte

	// reading is incremented while a queued closure owns the wire (via Do)
	// and decremented when it returns. The monitor-frame demultiplexer only
	// inspects the buffer head while reading == 0, per the spec's
	// unsolicited-frame dispatch strategy.
	reading int32

	queue *semaphore.Weighted

	monitorCh chan cflplist.Value
}

// New constructs a disconnected Session for host:port.
func New(host string, port int, cfg *config.Config, log logger.Interface) *Session {
	id := uuid.NewString()
	if base, ok := log.(*logger.Logger); ok {
		log = logger.NewSessionLogger(base, id)
	}
	s := &Session{
		ID:        id,
		host:      host,
		port:      port,
		cfg:       cfg,
		log:       log,
		enc:       cipher.New(),
		queue:     semaphore.NewWeighted(1),
		monitorCh: make(chan cflplist.Value, 16),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// EncryptionContext exposes the session's encryption context so the SRP
// handshake can install directional keys once authentication succeeds.
func (s *Session) EncryptionContext() *cipher.EncryptionContext {
	return s.enc
}

// Monitor returns the channel unsolicited monitor frames are delivered on.
// The channel is closed when the connection is torn down.
func (s *Session) Monitor() <-chan cflplist.Value {
	return s.monitorCh
}

// Connect dials the base station and starts the background read loop.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.log.Debug(fmt.Sprintf("[>] Connecting to ACP device '%s'...", addr))

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &acperrors.TransportError{Reason: "dial failed", Err: err}
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.closed = false
	s.mu.Unlock()

	go s.readLoop()

	s.log.Debug(fmt.Sprintf("[+] Connected to '%s'", addr))
	return nil
}

// IsConnected reports whether the session currently has a live connection.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && !s.closed
}

// Close gracefully tears down the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	s.closed = true
	s.cond.Broadcast()
	return nil
}

// ForceClose interrupts any in-flight blocking read/write by setting an
// immediate deadline on the connection, mirroring the teacher's SMBSession
// ForceClose: TryLock for the fast path, and a best-effort unlocked close
// when another goroutine holds the lock doing blocking I/O.
func (s *Session) ForceClose() error {
	if s.mu.TryLock() {
		if s.conn != nil {
			s.log.Debug(fmt.Sprintf("[FORCECLOSE] Closing connection for %s", s.host))
			s.conn.SetDeadline(time.Now())
			s.conn.Close()
			s.conn = nil
		}
		s.connected = false
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
		return nil
	}

	conn := s.conn
	if conn != nil {
		s.log.Debug(fmt.Sprintf("[FORCECLOSE] Lock held - force-closing TCP for %s", s.host))
		conn.SetDeadline(time.Now())
		conn.Close()
	}
	return nil
}

func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if s.enc.Installed() {
				if decrypted, derr := s.enc.Decrypt(chunk); derr == nil {
					chunk = decrypted
				}
			}

			s.mu.Lock()
			s.recvBuf = append(s.recvBuf, chunk...)
			s.drainMonitorFramesLocked()
			s.cond.Broadcast()
			s.mu.Unlock()
		}

		if err != nil {
			s.mu.Lock()
			s.closed = true
			s.connected = false
			s.fatal = &acperrors.TransportError{Reason: "connection lost", Err: err}
			s.cond.Broadcast()
			s.mu.Unlock()
			close(s.monitorCh)
			return
		}
	}
}

// drainMonitorFramesLocked must be called with s.mu held. It peels
// unsolicited "XE"-prefixed monitor frames off the head of the receive
// buffer for as long as no queued exchange is in flight. Any other
// unmatched prefix logs a warning and drains the buffer, since idle bytes
// that aren't a monitor frame can't be resynchronised to a frame boundary.
func (s *Session) drainMonitorFramesLocked() {
	for atomic.LoadInt32(&s.reading) == 0 {
		if len(s.recvBuf) < 2 {
			return
		}
		if s.recvBuf[0] != monitorMagic[0] || s.recvBuf[1] != monitorMagic[1] {
			s.log.Warning(fmt.Sprintf("dropping %d idle byte(s) with unmatched monitor prefix", len(s.recvBuf)))
			s.recvBuf = nil
			return
		}
		if len(s.recvBuf) < monitorHeaderSize {
			return
		}

		bodyLen := int(binary.BigEndian.Uint32(s.recvBuf[4:8]))
		total := monitorHeaderSize + bodyLen
		if len(s.recvBuf) < total {
			return
		}

		frame := append([]byte(nil), s.recvBuf[monitorHeaderSize:total]...)
		s.recvBuf = s.recvBuf[total:]

		v, err := cflplist.ParseBlob(frame)
		if err != nil {
			s.log.Warning(fmt.Sprintf("dropping malformed monitor frame: %v", err))
			continue
		}

		select {
		case s.monitorCh <- v:
		default:
			s.log.Warning("monitor channel full, dropping frame")
		}
	}
}

// Handle is the exclusive session interface exposed to a queued closure. It
// is invalidated when the closure returns; further use returns TransportError.
type Handle struct {
	s         *Session
	invalid   atomic.Bool
	sessionID string
}

func (h *Handle) checkValid() error {
	if h.invalid.Load() {
		return &acperrors.TransportError{Reason: "session handle invalidated"}
	}
	return nil
}

// Send writes data to the connection, transparently encrypting it once the
// encryption context is installed.
func (h *Handle) Send(data []byte) error {
	if err := h.checkValid(); err != nil {
		return err
	}
	s := h.s

	if s.enc.Installed() {
		encrypted, err := s.enc.Encrypt(data)
		if err != nil {
			return err
		}
		data = encrypted
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return &acperrors.TransportError{Reason: "not connected"}
	}

	if _, err := conn.Write(data); err != nil {
		return &acperrors.TransportError{Reason: "write failed", Err: err}
	}
	return nil
}

// Receive blocks until at least n bytes are available in the receive
// buffer, then returns and consumes exactly n bytes. It fails with a
// TransportError if no data arrives within the session's configured
// RequestTimeout. Use ReceiveContext to override the timeout per call.
func (h *Handle) Receive(n int) ([]byte, error) {
	return h.ReceiveContext(context.Background(), n)
}

// ReceiveContext behaves like Receive, but derives its deadline from ctx when
// ctx carries one, falling back to the session's configured RequestTimeout
// otherwise.
func (h *Handle) ReceiveContext(ctx context.Context, n int) ([]byte, error) {
	if err := h.checkValid(); err != nil {
		return nil, err
	}
	s := h.s

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.cfg.RequestTimeout())
	}

	timer := time.AfterFunc(time.Until(deadline), func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.recvBuf) < n {
		if s.closed {
			if s.fatal != nil {
				return nil, s.fatal
			}
			return nil, &acperrors.TransportError{Reason: "connection closed"}
		}
		if !time.Now().Before(deadline) {
			return nil, &acperrors.TransportError{Reason: "receive timed out"}
		}
		s.cond.Wait()
	}

	out := append([]byte(nil), s.recvBuf[:n]...)
	s.recvBuf = s.recvBuf[n:]
	return out, nil
}

// ReceiveMessageHeader reads and validates just the 128-byte message header,
// leaving any body bytes for a subsequent Receive/ReceiveMessage call.
func (h *Handle) ReceiveMessageHeader() (*message.Message, error) {
	header, err := h.Receive(message.HeaderSize)
	if err != nil {
		return nil, err
	}
	m, _, err := message.ParseHeader(header)
	return m, err
}

// ReceivePropertyElementHeader reads and decodes one 12-byte property
// element header, leaving its value bytes unread.
func (h *Handle) ReceivePropertyElementHeader() (name string, flags uint32, size uint32, err error) {
	raw, err := h.Receive(12)
	if err != nil {
		return "", 0, 0, err
	}
	return property.ParseElementHeader(raw)
}

// ReceiveMessage reads a complete message (header plus body) from the wire.
func (h *Handle) ReceiveMessage() (*message.Message, error) {
	header, err := h.Receive(message.HeaderSize)
	if err != nil {
		return nil, err
	}

	bodySize, err := message.PeekBodySize(header)
	if err != nil {
		return nil, err
	}

	var body []byte
	if bodySize > 0 {
		body, err = h.Receive(int(bodySize))
		if err != nil {
			return nil, err
		}
	}

	full := append(append([]byte(nil), header...), body...)
	m, _, err := message.Parse(full, message.ParseOptions{})
	return m, err
}

// Do enqueues fn as the session's exclusive owner of the wire, blocking
// until any prior exchange completes (or ctx is cancelled). The handle
// passed to fn is invalidated as soon as fn returns.
func (s *Session) Do(ctx context.Context, fn func(*Handle) error) error {
	if !s.IsConnected() {
		return &acperrors.TransportError{Reason: "not connected"}
	}

	if err := s.queue.Acquire(ctx, 1); err != nil {
		return &acperrors.TransportError{Reason: "queue acquire failed", Err: err}
	}
	defer s.queue.Release(1)

	atomic.AddInt32(&s.reading, 1)
	defer func() {
		atomic.AddInt32(&s.reading, -1)
		// A monitor frame may have arrived (and been withheld) while this
		// exchange owned the buffer; drain it now that reading has dropped.
		s.mu.Lock()
		s.drainMonitorFramesLocked()
		s.mu.Unlock()
	}()

	h := &Handle{s: s, sessionID: s.ID}
	defer h.invalid.Store(true)

	return fn(h)
}
