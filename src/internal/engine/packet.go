// FILE: muxd/src/internal/engine/packet.go
package engine

import (
	"bytes"
	"net"
	"os"
	"sync/atomic"

	"muxd/src/internal/event"
)

const maxDatagram = 64 * 1024

// packetListener reads a unix datagram socket; gnet has no unixgram transport
type packetListener struct {
	p      *port
	pc     net.PacketConn
	closed atomic.Bool
	seq    atomic.Uint64
}

func (l *packetListener) serve(e *Engine) error {
	size := maxDatagram
	if n := e.portOptions(l.p).maxPackage; n > 0 {
		size = n
	}
	buf := make([]byte, size)

	e.logger.Info("msg", "Datagram listener started",
		"component", "engine",
		"listener", l.p.ep.Name,
		"path", l.p.ep.Host)

	for {
		n, addr, err := l.pc.ReadFrom(buf)
		if err != nil {
			if l.closed.Load() {
				return nil
			}
			return err
		}

		conn := &packetConn{pc: l.pc, remote: addr, id: e.nextConnID()}
		e.dispatch(l.p, &event.Event{
			Kind:     event.Packet,
			WorkerID: e.workerFor(l.seq.Add(1)),
			Conn:     conn,
			Data:     bytes.Clone(buf[:n]),
		})
	}
}

// close shuts the socket and unlinks its path
func (l *packetListener) close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := l.pc.Close()
	if rmErr := os.Remove(l.p.ep.Host); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
