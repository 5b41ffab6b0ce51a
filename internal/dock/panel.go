package dock

import (
	"fmt"
	"strings"
	"sync"

	"dockbridge/internal/eventbus"
	logx "dockbridge/pkg/logx"
)

// PanelID is the plugin id of the dock panel containment.
const PanelID = "org.deepin.ds.dock"

type Position int32

const (
	PositionTop Position = iota
	PositionRight
	PositionBottom
	PositionLeft
)

func (p Position) String() string {
	switch p {
	case PositionTop:
		return "top"
	case PositionRight:
		return "right"
	case PositionBottom:
		return "bottom"
	case PositionLeft:
		return "left"
	default:
		return fmt.Sprintf("position(%d)", int32(p))
	}
}

func (p Position) Valid() bool { return p >= PositionTop && p <= PositionLeft }

// ParsePosition accepts the names printed by String.
func ParsePosition(s string) (Position, error) {
	for p := PositionTop; p <= PositionLeft; p++ {
		if strings.EqualFold(strings.TrimSpace(s), p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("dock: unknown position %q", s)
}

type HideMode int32

const (
	KeepShowing HideMode = 0
	KeepHidden  HideMode = 1
	SmartHide   HideMode = 3
)

func (m HideMode) Valid() bool { return m == KeepShowing || m == KeepHidden || m == SmartHide }

func (m HideMode) String() string {
	switch m {
	case KeepShowing:
		return "keep-showing"
	case KeepHidden:
		return "keep-hidden"
	case SmartHide:
		return "smart-hide"
	default:
		return fmt.Sprintf("hide-mode(%d)", int32(m))
	}
}

type HideState int32

const (
	HideStateUnknown HideState = iota
	HideStateShow
	HideStateHide
)

// Rect is a window rectangle in screen coordinates.
type Rect struct {
	X      int32 `json:"x"`
	Y      int32 `json:"y"`
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

// Panel is the dock panel the bridge forwards window operations to.
type Panel interface {
	Geometry() Rect
	FrontendWindowRect() Rect
	Position() Position
	SetPosition(Position)
	HideMode() HideMode
	SetHideMode(HideMode)
	HideState() HideState
	ReloadPlugins()
	CallShow()
	ResizeDock(offset int, dragging bool)
}

// PanelState is a headless Panel: it keeps the dock window state and
// publishes a bus event for every change. Rendering is somebody else's job.
type PanelState struct {
	bus eventbus.Bus
	log logx.Logger

	mu        sync.RWMutex
	geometry  Rect
	frontend  Rect
	position  Position
	hideMode  HideMode
	hideState HideState
	size      int
	reloads   int
}

// PanelEvent is the payload of the dock.* bus events.
type PanelEvent struct {
	Position  Position  `json:"position"`
	HideMode  HideMode  `json:"hideMode"`
	HideState HideState `json:"hideState"`
	Geometry  Rect      `json:"geometry"`
	Frontend  Rect      `json:"frontendWindowRect"`
}

// DefaultDockSize is the dock thickness, in pixels, before any resize.
const DefaultDockSize = 56

func NewPanelState(bus eventbus.Bus, log logx.Logger) *PanelState {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &PanelState{
		bus:       bus,
		log:       log.With(logx.String("comp", "panel")),
		position:  PositionBottom,
		hideMode:  KeepShowing,
		hideState: HideStateShow,
		size:      DefaultDockSize,
	}
}

func (p *PanelState) PluginID() string { return PanelID }

func (p *PanelState) Geometry() Rect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.geometry
}

func (p *PanelState) FrontendWindowRect() Rect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frontend
}

func (p *PanelState) Position() Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.position
}

func (p *PanelState) HideMode() HideMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hideMode
}

func (p *PanelState) HideState() HideState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hideState
}

// Size returns the current dock thickness.
func (p *PanelState) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.size
}

func (p *PanelState) Reloads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reloads
}

// SetPosition ignores invalid values and values equal to the current one.
func (p *PanelState) SetPosition(pos Position) {
	if !pos.Valid() {
		p.log.Debug("ignoring invalid position", logx.Int("position", int(pos)))
		return
	}
	p.mu.Lock()
	if p.position == pos {
		p.mu.Unlock()
		return
	}
	p.position = pos
	ev := p.eventLocked()
	p.mu.Unlock()
	eventbus.Publish(p.bus, eventbus.DockPositionChanged, ev)
}

func (p *PanelState) SetHideMode(mode HideMode) {
	if !mode.Valid() {
		p.log.Debug("ignoring invalid hide mode", logx.Int("mode", int(mode)))
		return
	}
	p.mu.Lock()
	if p.hideMode == mode {
		p.mu.Unlock()
		return
	}
	p.hideMode = mode
	if mode == KeepHidden {
		p.hideState = HideStateHide
	} else {
		p.hideState = HideStateShow
	}
	ev := p.eventLocked()
	p.mu.Unlock()
	eventbus.Publish(p.bus, eventbus.DockHideModeChanged, ev)
}

// SetGeometry records the window geometry reported by the compositor.
func (p *PanelState) SetGeometry(window, frontend Rect) {
	p.mu.Lock()
	if p.geometry == window && p.frontend == frontend {
		p.mu.Unlock()
		return
	}
	p.geometry = window
	p.frontend = frontend
	ev := p.eventLocked()
	p.mu.Unlock()
	eventbus.Publish(p.bus, eventbus.DockGeometryChanged, ev)
}

func (p *PanelState) ReloadPlugins() {
	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	p.log.Info("plugin reload requested")
}

func (p *PanelState) CallShow() {
	p.mu.Lock()
	if p.hideState == HideStateShow {
		p.mu.Unlock()
		return
	}
	p.hideState = HideStateShow
	ev := p.eventLocked()
	p.mu.Unlock()
	p.log.Debug("dock shown on request")
	eventbus.Publish(p.bus, eventbus.DockHideStateChanged, ev)
}

// ResizeDock grows or shrinks the dock by offset pixels. Intermediate drag
// steps are not published.
func (p *PanelState) ResizeDock(offset int, dragging bool) {
	p.mu.Lock()
	size := p.size + offset
	if size < minDockSize {
		size = minDockSize
	}
	if size > maxDockSize {
		size = maxDockSize
	}
	if size == p.size {
		p.mu.Unlock()
		return
	}
	p.size = size
	ev := p.eventLocked()
	p.mu.Unlock()
	if !dragging {
		eventbus.Publish(p.bus, eventbus.DockGeometryChanged, ev)
	}
}

const (
	minDockSize = 37
	maxDockSize = 100
)

func (p *PanelState) eventLocked() PanelEvent {
	return PanelEvent{Position: p.position, HideMode: p.hideMode, HideState: p.hideState, Geometry: p.geometry, Frontend: p.frontend}
}
