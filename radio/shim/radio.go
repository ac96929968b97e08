//go:build !linux

// Package shim implements the platform Radio on top of a helper process
// that owns the native Bluetooth stack. The helper is spawned with an RPC
// server listening on a unix socket; commands are JSON lines correlated by
// request id, replies carry a fixed binary header, and unsolicited events
// (device found, link lost) share the same stream.
package shim

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/config"
	"github.com/pawlink/ble-core/api/errorkinds"
	"github.com/pawlink/ble-core/radio/shim/internal/commands"
	"github.com/pawlink/ble-core/radio/shim/internal/events"
	"github.com/pawlink/ble-core/radio/shim/internal/serde"
	"github.com/puzpuzpuz/xsync/v3"
)

const initErrTimeout = 1 * time.Second

// Radio drives the shim helper process. It implements bluetooth.Radio.
type Radio struct {
	cfg config.Configuration
	log *slog.Logger

	conn   net.Conn
	closed atomic.Bool
	cancel context.CancelFunc

	id       *xsync.Counter
	requests *xsync.MapOf[int64, chan commands.Response]
	links    *xsync.MapOf[bluetooth.PeripheralID, *shimLink]

	errChan chan error

	mu    sync.Mutex
	found func(bluetooth.PeripheralIdentity)
}

var _ bluetooth.Radio = (*Radio)(nil)

// NewRadio spawns the helper process and establishes the RPC session.
func NewRadio(cfg config.Configuration, log *slog.Logger) (*Radio, error) {
	if log == nil {
		log = slog.Default()
	}

	r := &Radio{cfg: cfg, log: log}

	var initialized bool
	defer func() {
		if !initialized {
			r.Close()
		}
	}()

	if cfg.SocketPath == "" {
		t, err := os.CreateTemp("", "shim_sock_")
		if err != nil {
			return nil, fault.Wrap(err,
				fctx.With(context.Background(), "error_at", "create-socket"),
				ftag.With(ftag.Internal),
				fmsg.With("Cannot create socket file"),
			)
		}
		t.Close()

		cfg.SocketPath = t.Name()
		r.cfg.SocketPath = cfg.SocketPath
	}

	ctx := r.reset(false)

	helper := exec.CommandContext(
		ctx, cfg.ShimPath,
		commands.StartRpcServer(cfg.SocketPath).Slice()...,
	)
	helper.Stdout = os.Stdout
	helper.Stderr = os.Stderr
	if err := helper.Start(); err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "start-shim"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start RPC session with shim"),
		)
	}

	if err := r.waitForInitErrors(ctx, helper); err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "exec-shim"),
			ftag.With(ftag.Internal),
			fmsg.With("Shim process exited with errors"),
		)
	}

	if err := r.startListener(ctx, cfg.SocketPath); err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "listener-shim"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start listener on provided socket"),
		)
	}

	initialized = true

	return r, nil
}

// Scan implements bluetooth.Radio. Discovery events keep arriving until
// the returned stop function is called.
func (r *Radio) Scan(ctx context.Context, found func(bluetooth.PeripheralIdentity)) (func(), error) {
	if r.closed.Load() {
		return nil, errorkinds.ErrSessionClosed
	}

	r.mu.Lock()
	r.found = found
	r.mu.Unlock()

	if _, err := commands.StartDiscovery().ExecuteWith(r.executor); err != nil {
		r.mu.Lock()
		r.found = nil
		r.mu.Unlock()

		return nil, fault.Wrap(err,
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start discovery"),
		)
	}

	stop := func() {
		r.mu.Lock()
		r.found = nil
		r.mu.Unlock()

		if _, err := commands.StopDiscovery().ExecuteWith(r.executor); err != nil {
			r.log.Warn("discovery stop failed", "err", err)
		}
	}

	return stop, nil
}

// Connect implements bluetooth.Radio.
func (r *Radio) Connect(ctx context.Context, peripheral bluetooth.PeripheralIdentity) (bluetooth.Link, error) {
	if r.closed.Load() {
		return nil, errorkinds.ErrSessionClosed
	}

	timeout := commands.DefaultReplyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if _, err := commands.ConnectDevice(peripheral.ID).ExecuteWith(r.executor, timeout); err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "address", string(peripheral.ID)),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to device"),
		)
	}

	link := &shimLink{identity: peripheral, lost: make(chan struct{})}
	r.links.Store(peripheral.ID, link)

	return link, nil
}

// Disconnect implements bluetooth.Radio.
func (r *Radio) Disconnect(ctx context.Context, peripheral bluetooth.PeripheralIdentity) error {
	if r.closed.Load() {
		return errorkinds.ErrSessionClosed
	}

	if link, ok := r.links.LoadAndDelete(peripheral.ID); ok {
		link.drop()
	}

	if _, err := commands.DisconnectDevice(peripheral.ID).ExecuteWith(r.executor); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "address", string(peripheral.ID)),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot disconnect from device"),
		)
	}

	return nil
}

// Close stops the RPC session and the helper process.
func (r *Radio) Close() error {
	if r.closed.Load() {
		return errorkinds.ErrSessionClosed
	}

	var err error
	if r.conn != nil {
		_, err = commands.StopRpcServer().ExecuteWith(r.executor)
	}
	r.reset(true)

	return err
}

func (r *Radio) waitForInitErrors(ctx context.Context, cmd *exec.Cmd) error {
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() != nil {
			r.Close()
		}
	}()

	select {
	case err := <-r.errChan:
		return err

	case <-ctx.Done():
		return errorkinds.ErrSessionClosed

	case <-time.NewTimer(initErrTimeout).C:
	}

	return nil
}

func (r *Radio) startListener(ctx context.Context, socketpath string) error {
	socket, err := net.Dial("unix", socketpath)
	if err != nil {
		return err
	}

	r.conn = socket
	go r.listen(ctx)

	return nil
}

func (r *Radio) listen(ctx context.Context) {
	sendResponse := func(c chan commands.Response, response commands.Response) {
		select {
		case c <- response:
			close(c)
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if r.closed.Load() {
			return
		}

		replyHeader := commands.RawReplyHeaderBuffer{}
		headerBytes, err := r.conn.Read(replyHeader[:])
		if err != nil {
			r.listenerError(err)
			continue
		}
		if headerBytes != len(replyHeader) {
			continue
		}

		header, err := commands.UnpackReplyHeader(replyHeader)
		if err != nil {
			r.listenerError(err)
			continue
		}

		buf := make([]byte, header.ContentSize)
		if _, err = io.ReadFull(r.conn, buf); err != nil {
			r.listenerError(err)
			continue
		}

		if header.EventID > 0 {
			r.listenerEvent(buf)
			continue
		}

		var response commands.Response
		if err := serde.UnmarshalJson(buf, &response); err != nil {
			r.listenerError(err)
			continue
		}

		replyChan, ok := chan commands.Response(nil), false
		if header.IsOperationComplete {
			replyChan, ok = r.requests.LoadAndDelete(header.RequestId)
		} else {
			replyChan, ok = r.requests.Load(header.RequestId)
		}

		if ok {
			sendResponse(replyChan, response)
		}
	}
}

func (r *Radio) listenerEvent(raw []byte) {
	ev, err := events.Unmarshal(raw)
	if err != nil {
		r.log.Warn("undecodable shim event", "err", err)
		return
	}

	switch ev.EventId {
	case events.EventDeviceFound:
		payload, err := events.UnmarshalPayload[events.DeviceFound](ev)
		if err != nil {
			r.log.Warn("undecodable device-found event", "err", err)
			return
		}

		r.mu.Lock()
		found := r.found
		r.mu.Unlock()

		if found != nil {
			found(bluetooth.PeripheralIdentity{
				ID:   bluetooth.PeripheralID(payload.Address),
				Name: payload.Name,
			})
		}

	case events.EventLinkLost:
		payload, err := events.UnmarshalPayload[events.LinkLost](ev)
		if err != nil {
			r.log.Warn("undecodable link-lost event", "err", err)
			return
		}

		if link, ok := r.links.LoadAndDelete(bluetooth.PeripheralID(payload.Address)); ok {
			link.drop()
		}

	default:
		r.log.Warn("unknown shim event", "event_id", ev.EventId)
	}
}

func (r *Radio) listenerError(err error) {
	if r.closed.Load() {
		return
	}

	r.log.Warn("shim listener error", "err", err)

	select {
	case r.errChan <- err:
	default:
	}
}

func (r *Radio) executor(params []string) (chan commands.Response, error) {
	if r.closed.Load() {
		return nil, errorkinds.ErrSessionClosed
	}

	r.id.Inc()
	replyChan := make(chan commands.Response, 1)
	r.requests.Store(r.id.Value(), replyChan)

	command := map[string]any{
		"command":    params,
		"request_id": r.id.Value(),
	}

	commandBytes, err := serde.MarshalJson(command)
	if err != nil {
		return nil, err
	}

	if _, err = r.conn.Write(commandBytes); err != nil {
		return nil, err
	}

	return replyChan, nil
}

func (r *Radio) reset(isClosed bool) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.found = nil
	r.closed.Store(isClosed)

	if isClosed {
		if r.cancel != nil {
			r.cancel()
		}
		if r.conn != nil {
			r.conn.Close()
		}
		if r.links != nil {
			r.links.Range(func(_ bluetooth.PeripheralID, link *shimLink) bool {
				link.drop()
				return true
			})
		}

		return context.Background()
	}

	r.id = xsync.NewCounter()
	r.requests = xsync.NewMapOf[int64, chan commands.Response]()
	r.links = xsync.NewMapOf[bluetooth.PeripheralID, *shimLink]()
	r.errChan = make(chan error, 10)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	return ctx
}

type shimLink struct {
	identity bluetooth.PeripheralIdentity
	lost     chan struct{}
	once     sync.Once
}

func (l *shimLink) Identity() bluetooth.PeripheralIdentity {
	return l.identity
}

func (l *shimLink) Disconnected() <-chan struct{} {
	return l.lost
}

func (l *shimLink) drop() {
	l.once.Do(func() {
		close(l.lost)
	})
}
