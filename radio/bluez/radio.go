//go:build linux

// Package bluez implements the platform Radio on BlueZ over the system
// DBus. Discovery maps to Adapter1 StartDiscovery/StopDiscovery with
// InterfacesAdded signals, connections to Device1 Connect/Disconnect with
// PropertiesChanged signals for link loss.
package bluez

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/godbus/dbus/v5"
	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/errorkinds"
)

const (
	bluezBusName          = "org.bluez"
	adapterInterface      = "org.bluez.Adapter1"
	deviceInterface       = "org.bluez.Device1"
	objectManagerIface    = "org.freedesktop.DBus.ObjectManager"
	propertiesIface       = "org.freedesktop.DBus.Properties"
	interfacesAddedSignal = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	propertiesChanged     = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

// Radio drives a BlueZ adapter. It implements bluetooth.Radio.
type Radio struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath
	log     *slog.Logger

	signals chan *dbus.Signal

	mu    sync.Mutex
	found func(bluetooth.PeripheralIdentity)
	links map[dbus.ObjectPath]*bluezLink

	done chan struct{}
}

var _ bluetooth.Radio = (*Radio)(nil)

// NewRadio connects to the system bus and binds the first powered adapter.
func NewRadio(log *slog.Logger) (*Radio, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fault.Wrap(err,
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to the system bus"),
		)
	}

	adapter, err := firstAdapter(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	r := &Radio{
		conn:    conn,
		adapter: adapter,
		log:     log,
		signals: make(chan *dbus.Signal, 32),
		links:   make(map[dbus.ObjectPath]*bluezLink),
		done:    make(chan struct{}),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(objectManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	); err != nil {
		conn.Close()
		return nil, fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("Cannot match discovery signals"))
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, deviceInterface),
	); err != nil {
		conn.Close()
		return nil, fault.Wrap(err, ftag.With(ftag.Internal), fmsg.With("Cannot match device property signals"))
	}

	conn.Signal(r.signals)
	go r.dispatch()

	return r, nil
}

// Scan implements bluetooth.Radio.
func (r *Radio) Scan(ctx context.Context, found func(bluetooth.PeripheralIdentity)) (func(), error) {
	r.mu.Lock()
	r.found = found
	r.mu.Unlock()

	call := r.conn.Object(bluezBusName, r.adapter).CallWithContext(ctx, adapterInterface+".StartDiscovery", 0)
	if call.Err != nil {
		r.mu.Lock()
		r.found = nil
		r.mu.Unlock()

		return nil, fault.Wrap(call.Err,
			ftag.With(ftag.Internal),
			fmsg.With("Cannot start discovery"),
		)
	}

	stop := func() {
		r.mu.Lock()
		r.found = nil
		r.mu.Unlock()

		if err := r.conn.Object(bluezBusName, r.adapter).Call(adapterInterface+".StopDiscovery", 0).Err; err != nil {
			r.log.Warn("discovery stop failed", "err", err)
		}
	}

	return stop, nil
}

// Connect implements bluetooth.Radio.
func (r *Radio) Connect(ctx context.Context, peripheral bluetooth.PeripheralIdentity) (bluetooth.Link, error) {
	path := r.devicePath(peripheral.ID)

	call := r.conn.Object(bluezBusName, path).CallWithContext(ctx, deviceInterface+".Connect", 0)
	if call.Err != nil {
		return nil, fault.Wrap(call.Err,
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to device "+string(peripheral.ID)),
		)
	}

	link := &bluezLink{identity: peripheral, lost: make(chan struct{})}

	r.mu.Lock()
	r.links[path] = link
	r.mu.Unlock()

	return link, nil
}

// Disconnect implements bluetooth.Radio.
func (r *Radio) Disconnect(ctx context.Context, peripheral bluetooth.PeripheralIdentity) error {
	path := r.devicePath(peripheral.ID)

	r.mu.Lock()
	link := r.links[path]
	delete(r.links, path)
	r.mu.Unlock()

	if link != nil {
		link.drop()
	}

	call := r.conn.Object(bluezBusName, path).CallWithContext(ctx, deviceInterface+".Disconnect", 0)
	if call.Err != nil {
		if link == nil {
			return errorkinds.ErrLinkNotExist
		}

		return fault.Wrap(call.Err,
			ftag.With(ftag.Internal),
			fmsg.With("Cannot disconnect from device "+string(peripheral.ID)),
		)
	}

	return nil
}

// Close detaches from the bus.
func (r *Radio) Close() error {
	close(r.done)
	r.conn.RemoveSignal(r.signals)

	return r.conn.Close()
}

func (r *Radio) dispatch() {
	for {
		select {
		case <-r.done:
			return

		case sig, ok := <-r.signals:
			if !ok {
				return
			}

			switch sig.Name {
			case interfacesAddedSignal:
				r.interfacesAdded(sig)
			case propertiesChanged:
				r.deviceChanged(sig)
			}
		}
	}
}

func (r *Radio) interfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}

	props, ok := ifaces[deviceInterface]
	if !ok {
		return
	}

	identity := identityFromProperties(props)
	if identity.IsZero() {
		return
	}

	r.mu.Lock()
	found := r.found
	r.mu.Unlock()

	if found != nil {
		found(identity)
	}
}

func (r *Radio) deviceChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	props, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	connected, ok := props["Connected"]
	if !ok {
		return
	}
	if up, _ := connected.Value().(bool); up {
		return
	}

	r.mu.Lock()
	link := r.links[sig.Path]
	delete(r.links, sig.Path)
	r.mu.Unlock()

	if link != nil {
		r.log.Info("bluez reported link loss", "path", string(sig.Path))
		link.drop()
	}
}

func (r *Radio) devicePath(id bluetooth.PeripheralID) dbus.ObjectPath {
	return dbus.ObjectPath(string(r.adapter) + "/dev_" + strings.ReplaceAll(string(id), ":", "_"))
}

func firstAdapter(conn *dbus.Conn) (dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

	if err := conn.Object(bluezBusName, "/").Call(objectManagerIface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return "", fault.Wrap(err,
			ftag.With(ftag.Internal),
			fmsg.With("Cannot enumerate bluez objects"),
		)
	}

	for path, ifaces := range objects {
		if _, ok := ifaces[adapterInterface]; ok {
			return path, nil
		}
	}

	return "", fault.Wrap(errorkinds.ErrScanUnavailable,
		ftag.With(ftag.NotFound),
		fmsg.With("No bluetooth adapter found"),
	)
}

func identityFromProperties(props map[string]dbus.Variant) bluetooth.PeripheralIdentity {
	var identity bluetooth.PeripheralIdentity

	if address, ok := props["Address"]; ok {
		if s, _ := address.Value().(string); s != "" {
			identity.ID = bluetooth.PeripheralID(s)
		}
	}

	if name, ok := props["Name"]; ok {
		identity.Name, _ = name.Value().(string)
	} else if alias, ok := props["Alias"]; ok {
		identity.Name, _ = alias.Value().(string)
	}

	return identity
}

type bluezLink struct {
	identity bluetooth.PeripheralIdentity
	lost     chan struct{}
	once     sync.Once
}

func (l *bluezLink) Identity() bluetooth.PeripheralIdentity {
	return l.identity
}

func (l *bluezLink) Disconnected() <-chan struct{} {
	return l.lost
}

func (l *bluezLink) drop() {
	l.once.Do(func() {
		close(l.lost)
	})
}
