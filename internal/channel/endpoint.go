package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/wnetio/wnet/internal/wstatus"
)

const headerLen = 4 // u32 length prefix, excludes itself

// ErrPeerClosed is returned by RecvBytes once the peer end has gone
// away (spec.md §4.1: "a closed channel surfaces as peer closed on
// next receive").
var ErrPeerClosed = errors.New("channel: peer closed")

// Endpoint is one end of a control-channel socketpair. Every endpoint
// is non-blocking and close-on-exec (spec.md §4.1 invariants); Close is
// idempotent.
type Endpoint struct {
	file     *os.File
	registry *Registry

	mu     sync.Mutex
	closed bool
}

// NewEndpoint wraps an already-configured *os.File (non-blocking,
// close-on-exec already applied by the platform-specific opener).
func NewEndpoint(f *os.File, registry *Registry) *Endpoint {
	if registry == nil {
		registry = CoreRegistry()
	}
	return &Endpoint{file: f, registry: registry}
}

// File exposes the underlying descriptor, e.g. so it can be placed in
// exec.Cmd.ExtraFiles for the next fork, or registered with a poller.
func (e *Endpoint) File() *os.File { return e.file }

// Close is idempotent: a second call is a no-op, matching spec.md
// §4.1 ("close is idempotent").
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.file.Close()
}

// SendBytes marshals msg onto the wire. If msg carries a descriptor
// (spec.md §4.1: "protocol tag byte identifies a command record whose
// command-id equals CHANNEL_OPEN"), the platform-specific sendWithFD is
// used so the OS attaches it as ancillary data; otherwise a plain
// write is used.
func (e *Endpoint) SendBytes(msg Message) (int, error) {
	body := msg.MarshalBody()
	frame := make([]byte, 1+4+len(body))
	frame[0] = byte(TagCommand)
	binary.LittleEndian.PutUint16(frame[1:3], uint16(msg.Namespace()))
	binary.LittleEndian.PutUint16(frame[3:5], uint16(msg.Command()))
	copy(frame[5:], body)

	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header, uint32(len(frame)))

	full := append(header, frame...)

	if fc, ok := msg.(fdCarrier); ok && msg.Command() == CmdOpen {
		n, err := e.sendWithFD(full, fc.FD())
		return n, classifySend(err)
	}

	n, err := e.file.Write(full)
	return n, classifySend(err)
}

// SendExternal writes an opaque, externally-encoded payload (proto tag
// 0x02). The core never interprets the bytes; this is the extension
// point spec.md §9 leaves for an application message schema.
func (e *Endpoint) SendExternal(payload []byte) (int, error) {
	frame := make([]byte, 1+len(payload))
	frame[0] = byte(TagExternal)
	copy(frame[1:], payload)

	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header, uint32(len(frame)))

	n, err := e.file.Write(append(header, frame...))
	return n, classifySend(err)
}

func classifySend(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return wstatus.New(wstatus.Timeout, "channel.SendBytes", err)
	}
	return wstatus.IOErrorf("channel.SendBytes", err)
}

// Decoded is what RecvBytes returns: either a recognized command
// Message, or a raw external payload when Tag == TagExternal.
type Decoded struct {
	Tag      Tag
	Message  Message
	External []byte
}

// RecvBytes reads exactly one frame and decodes it. For CHANNEL_OPEN it
// validates that ancillary data carried a single SCM_RIGHTS descriptor
// and writes it into the Open record's Fd field, overwriting the
// sender's placeholder (spec.md §4.1, §8 round-trip invariant).
// The header is read with recvmsg as well, since the kernel attaches
// the descriptor to the first bytes of the frame. Truncation of data or
// control (MSG_TRUNC/MSG_CTRUNC) is not detected or logged; an OPEN
// whose descriptor did not arrive is reported as Corruption.
func (e *Endpoint) RecvBytes() (*Decoded, error) {
	header := make([]byte, headerLen)
	headerFD, err := e.recvFull(header)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header)
	if n == 0 {
		return nil, wstatus.Corruptionf("channel.RecvBytes", "zero-length frame")
	}

	buf := make([]byte, n)
	fd, err := e.recvFull(buf)
	if err != nil {
		return nil, err
	}
	if fd < 0 {
		fd = headerFD
	}

	tag := Tag(buf[0])
	switch tag {
	case TagExternal:
		return &Decoded{Tag: tag, External: buf[1:]}, nil
	case TagCommand:
		if len(buf) < 5 {
			return nil, wstatus.Corruptionf("channel.RecvBytes", "short command header")
		}
		ns := Namespace(binary.LittleEndian.Uint16(buf[1:3]))
		cmd := CommandID(binary.LittleEndian.Uint16(buf[3:5]))
		msg, ok := e.registry.New(ns, cmd)
		if !ok {
			return nil, wstatus.Corruptionf("channel.RecvBytes", fmt.Sprintf("unknown (ns=%d,cmd=%d)", ns, cmd))
		}
		if err := msg.UnmarshalBody(buf[5:]); err != nil {
			return nil, wstatus.Corruptionf("channel.RecvBytes", err.Error())
		}
		if cmd == CmdOpen {
			if fc, ok := msg.(fdCarrier); ok {
				if fd < 0 {
					return nil, wstatus.Corruptionf("channel.RecvBytes", "CHANNEL_OPEN missing ancillary descriptor")
				}
				fc.SetFD(fd)
			}
		}
		return &Decoded{Tag: tag, Message: msg}, nil
	default:
		return nil, wstatus.Corruptionf("channel.RecvBytes", fmt.Sprintf("unknown protocol tag %#x", tag))
	}
}

// readFull fills buf completely, treating EAGAIN/EINTR as retry-later
// rather than surfacing them (spec.md §4.1, §7).
func (e *Endpoint) readFull(buf []byte) error {
	for len(buf) > 0 {
		n, err := e.file.Read(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err != nil {
			if err == io.EOF {
				return ErrPeerClosed
			}
			if isRetryable(err) {
				continue
			}
			return wstatus.IOErrorf("channel.RecvBytes", err)
		}
		if n == 0 {
			return ErrPeerClosed
		}
	}
	return nil
}
