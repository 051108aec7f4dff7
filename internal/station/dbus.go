package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/gyara/changeup/internal/config"
	"github.com/gyara/changeup/internal/logger"
	"github.com/gyara/changeup/internal/rules"
)

// D-Bus addressing
const (
	DefaultBusName = config.DefaultBusName
	ObjectPath     = dbus.ObjectPath("/moe/gyara/changeup")
	Interface      = "moe.gyara.changeup.ChangeUpEP"

	propertiesInterface = "org.freedesktop.DBus.Properties"
)

// D-Bus error names
const (
	ErrNameNoSuchRule = "moe.gyara.changeup.Error.NoSuchRule"
	ErrNameNotFound   = "moe.gyara.changeup.Error.NotFound"
	ErrNameConfig     = "moe.gyara.changeup.Error.Config"
	ErrNameFailed     = "moe.gyara.changeup.Error.Failed"

	errNameUnknownProperty  = "org.freedesktop.DBus.Error.UnknownProperty"
	errNameUnknownInterface = "org.freedesktop.DBus.Error.UnknownInterface"
	errNamePropertyReadOnly = "org.freedesktop.DBus.Error.PropertyReadOnly"
)

// ErrBusClosed is returned by Serve when the bus connection goes away.
var ErrBusClosed = errors.New("d-bus connection closed")

// toDBusError maps service errors onto named D-Bus errors.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrNameFailed
	var loadErr *config.LoadError
	switch {
	case errors.Is(err, rules.ErrNoSuchRule):
		name = ErrNameNoSuchRule
	case errors.Is(err, ErrNotFound):
		name = ErrNameNotFound
	case errors.As(err, &loadErr):
		name = ErrNameConfig
	}
	return dbus.NewError(name, []interface{}{err.Error()})
}

// endpoint carries exactly the methods exported on Interface.
type endpoint struct {
	ctx context.Context
	svc *Service
}

func (e endpoint) Ping() (string, *dbus.Error) {
	return e.svc.Ping(), nil
}

func (e endpoint) ReloadConfig(path string) (string, *dbus.Error) {
	reply, err := e.svc.ReloadConfig(path)
	if err != nil {
		logger.WithComponent("dbus").Warn().Err(err).Str("path", path).Msg("ReloadConfig failed")
		return "", toDBusError(err)
	}
	return reply, nil
}

func (e endpoint) Focus(target string) *dbus.Error {
	return toDBusError(e.svc.Focus(e.ctx, target))
}

func (e endpoint) RuleFocus(name string) *dbus.Error {
	return toDBusError(e.svc.RuleFocus(e.ctx, name))
}

func (e endpoint) JumpToLastViewed() *dbus.Error {
	return toDBusError(e.svc.JumpToLastViewed(e.ctx))
}

// Snapshot returns the focus state as JSON.
func (e endpoint) Snapshot() (string, *dbus.Error) {
	data, err := json.Marshal(e.svc.Snapshot())
	if err != nil {
		return "", toDBusError(err)
	}
	return string(data), nil
}

// properties serves org.freedesktop.DBus.Properties for Interface. Values
// are computed on every read.
type properties struct {
	svc *Service
}

var propertyTypes = []introspect.Property{
	{Name: "Version", Type: "s", Access: "read"},
	{Name: "Ruleset", Type: "s", Access: "read"},
	{Name: "Actions", Type: "s", Access: "read"},
	{Name: "LastViewedExists", Type: "b", Access: "read"},
	{Name: "LastViewed", Type: "x", Access: "read"},
}

func (p properties) value(name string) (interface{}, error) {
	switch name {
	case "Version":
		return p.svc.Version(), nil
	case "Ruleset":
		return p.svc.Ruleset()
	case "Actions":
		return p.svc.Actions()
	case "LastViewedExists":
		return p.svc.LastViewedExists(), nil
	case "LastViewed":
		return p.svc.LastViewed(), nil
	}
	return nil, dbus.NewError(errNameUnknownProperty, []interface{}{fmt.Sprintf("unknown property %s", name)})
}

func (p properties) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	if iface != Interface {
		return dbus.Variant{}, dbus.NewError(errNameUnknownInterface, []interface{}{iface})
	}
	v, err := p.value(name)
	if err != nil {
		var dbusErr *dbus.Error
		if errors.As(err, &dbusErr) {
			return dbus.Variant{}, dbusErr
		}
		return dbus.Variant{}, toDBusError(err)
	}
	return dbus.MakeVariant(v), nil
}

func (p properties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != Interface {
		return nil, dbus.NewError(errNameUnknownInterface, []interface{}{iface})
	}
	all := make(map[string]dbus.Variant, len(propertyTypes))
	for _, pt := range propertyTypes {
		v, err := p.value(pt.Name)
		if err != nil {
			return nil, toDBusError(err)
		}
		all[pt.Name] = dbus.MakeVariant(v)
	}
	return all, nil
}

func (p properties) Set(iface, name string, _ dbus.Variant) *dbus.Error {
	return dbus.NewError(errNamePropertyReadOnly, []interface{}{fmt.Sprintf("%s.%s is read-only", iface, name)})
}

// Server publishes a Service on the session bus.
type Server struct {
	conn    *dbus.Conn
	svc     *Service
	busName string
}

// NewServer binds svc to conn under busName.
func NewServer(conn *dbus.Conn, svc *Service, busName string) *Server {
	if busName == "" {
		busName = DefaultBusName
	}
	return &Server{conn: conn, svc: svc, busName: busName}
}

func introspection() *introspect.Node {
	return &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       Interface,
				Methods:    introspect.Methods(endpoint{}),
				Properties: propertyTypes,
			},
		},
	}
}

// Serve exports the object, claims the bus name, and blocks until ctx is
// done or the bus connection is lost.
func (s *Server) Serve(ctx context.Context) error {
	log := logger.WithComponent("dbus")

	ep := endpoint{ctx: ctx, svc: s.svc}
	if err := s.conn.Export(ep, ObjectPath, Interface); err != nil {
		return fmt.Errorf("export %s: %w", Interface, err)
	}
	if err := s.conn.Export(properties{svc: s.svc}, ObjectPath, propertiesInterface); err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	node := introspect.NewIntrospectable(introspection())
	if err := s.conn.Export(node, ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}

	reply, err := s.conn.RequestName(s.busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", s.busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", s.busName)
	}
	log.Info().Str("name", s.busName).Str("path", string(ObjectPath)).Msg("D-Bus interface published")

	select {
	case <-ctx.Done():
		if _, err := s.conn.ReleaseName(s.busName); err != nil {
			log.Warn().Err(err).Msg("Failed to release bus name")
		}
		return ctx.Err()
	case <-s.conn.Context().Done():
		return ErrBusClosed
	}
}
