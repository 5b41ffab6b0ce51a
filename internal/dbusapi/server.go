package dbusapi

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"dockbridge/internal/eventbus"
	logx "dockbridge/pkg/logx"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

var ErrNoConn = errors.New("dbusapi: no bus connection")

// Server owns the exported objects on one bus connection.
type Server struct {
	cfg    Config
	conn   *dbus.Conn
	dock   DockBackend
	notify NotifyBackend
	bus    eventbus.Bus
	log    logx.Logger
	info   ServerInfo

	mu      sync.Mutex
	names   []string
	props   *prop.Properties
	events  <-chan eventbus.Event
	unsub   func()
	emit    func(path dbus.ObjectPath, name string, values ...any) error
	setProp func(name string, value any)
}

// Connect opens the session bus.
func Connect() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return conn, nil
}

// New prepares a server. A nil dock or notify backend skips that object.
func New(cfg Config, conn *dbus.Conn, d DockBackend, n NotifyBackend, bus eventbus.Bus, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		cfg:    cfg,
		conn:   conn,
		dock:   d,
		notify: n,
		bus:    bus,
		log:    log.With(logx.String("comp", "dbus")),
		info:   defaultServerInfo,
	}
	if conn != nil {
		s.emit = conn.Emit
	}
	return s
}

// Start claims the bus names and exports the objects. Signals start flowing
// once Run is called.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.conn == nil {
		return ErrNoConn
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Dock && s.dock != nil {
		if err := s.exportDockLocked(); err != nil {
			return err
		}
	}
	if s.cfg.Notifications && s.notify != nil {
		if err := s.exportNotificationsLocked(); err != nil {
			return err
		}
	}
	if s.bus != nil && s.events == nil {
		s.events, s.unsub = s.bus.Subscribe(64)
	}
	s.log.Info("bus objects exported", logx.Strings("names", s.names))
	return nil
}

func (s *Server) exportDockLocked() error {
	if err := s.claimLocked(DockName); err != nil {
		return err
	}
	methods := dockMethods(s.dock)
	if err := s.conn.ExportMethodTable(methods, DockPath, DockInterface); err != nil {
		return fmt.Errorf("export %s: %w", DockInterface, err)
	}
	props, err := prop.Export(s.conn, DockPath, prop.Map{DockInterface: dockProps(s.dock)})
	if err != nil {
		return fmt.Errorf("export %s properties: %w", DockInterface, err)
	}
	s.props = props
	s.setProp = func(name string, value any) { props.SetMust(DockInterface, name, value) }

	node := &introspect.Node{
		Name: string(DockPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       DockInterface,
				Methods:    introspectMethods(methods),
				Properties: props.Introspection(DockInterface),
				Signals: []introspect.Signal{
					{Name: "PositionChanged", Args: []introspect.Arg{{Name: "position", Type: "i"}}},
					{Name: "HideModeChanged", Args: []introspect.Arg{{Name: "mode", Type: "i"}}},
					{Name: "FrontendWindowRectChanged", Args: []introspect.Arg{{Name: "rect", Type: "(iiii)"}}},
				},
			},
		},
	}
	return s.conn.Export(introspect.NewIntrospectable(node), DockPath, "org.freedesktop.DBus.Introspectable")
}

func (s *Server) exportNotificationsLocked() error {
	if err := s.claimLocked(NotificationsName); err != nil {
		return err
	}
	methods := notificationMethods(s.notify, s.info)
	if err := s.conn.ExportMethodTable(methods, NotificationsPath, NotificationsInterface); err != nil {
		return fmt.Errorf("export %s: %w", NotificationsInterface, err)
	}
	records := recordMethods(s.notify)
	if err := s.conn.ExportMethodTable(records, NotificationsPath, RecordsInterface); err != nil {
		return fmt.Errorf("export %s: %w", RecordsInterface, err)
	}

	node := &introspect.Node{
		Name: string(NotificationsPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    NotificationsInterface,
				Methods: introspectMethods(methods),
				Signals: []introspect.Signal{
					{Name: "NotificationClosed", Args: []introspect.Arg{{Name: "id", Type: "u"}, {Name: "reason", Type: "u"}}},
					{Name: "ActionInvoked", Args: []introspect.Arg{{Name: "id", Type: "u"}, {Name: "action_key", Type: "s"}}},
				},
			},
			{Name: RecordsInterface, Methods: introspectMethods(records)},
		},
	}
	return s.conn.Export(introspect.NewIntrospectable(node), NotificationsPath, "org.freedesktop.DBus.Introspectable")
}

func (s *Server) claimLocked(name string) error {
	reply, err := s.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", name)
	}
	s.names = append(s.names, name)
	return nil
}

// Run forwards bus events as D-Bus signals until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	events := s.events
	s.mu.Unlock()
	if events == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			s.dispatch(e)
		}
	}
}

func (s *Server) dispatch(e eventbus.Event) {
	sigs, updates := translate(e)
	s.mu.Lock()
	emit, setProp := s.emit, s.setProp
	s.mu.Unlock()

	if setProp != nil {
		for _, u := range updates {
			setProp(u.name, u.value)
		}
	}
	if emit == nil {
		return
	}
	for _, sg := range sigs {
		if err := emit(sg.path, sg.name, sg.values...); err != nil {
			s.log.Debug("emit failed", logx.String("signal", sg.name), logx.Err(err))
		}
	}
}

// Close releases the bus names. The connection itself belongs to the caller.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	var errs []error
	for _, name := range s.names {
		if _, err := s.conn.ReleaseName(name); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", name, err))
		}
	}
	s.names = nil
	return errors.Join(errs...)
}

var dbusErrorType = reflect.TypeOf((*dbus.Error)(nil))

// introspectMethods describes a method table by reflection.
func introspectMethods(table map[string]any) []introspect.Method {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]introspect.Method, 0, len(names))
	for _, name := range names {
		t := reflect.TypeOf(table[name])
		m := introspect.Method{Name: name}
		for i := 0; i < t.NumIn(); i++ {
			m.Args = append(m.Args, introspect.Arg{
				Name:      fmt.Sprintf("arg%d", i),
				Type:      dbus.SignatureOfType(t.In(i)).String(),
				Direction: "in",
			})
		}
		for i := 0; i < t.NumOut(); i++ {
			if t.Out(i) == dbusErrorType {
				continue
			}
			m.Args = append(m.Args, introspect.Arg{
				Name:      fmt.Sprintf("out%d", i),
				Type:      dbus.SignatureOfType(t.Out(i)).String(),
				Direction: "out",
			})
		}
		out = append(out, m)
	}
	return out
}
