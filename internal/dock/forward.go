package dock

import (
	"errors"
	"fmt"

	"dockbridge/internal/capability"
)

var (
	ErrUnknownOperation = errors.New("dock: unknown operation")
	ErrBadArguments     = errors.New("dock: bad arguments")
)

type forwardFunc func(p *Proxy, args []any) (any, error)

type opKey struct{ capability, op string }

// forwardTable maps (capability id, operation) to the typed proxy call.
// Missing applets produce the same defaults as the typed methods.
var forwardTable = map[opKey]forwardFunc{
	{capability.TaskManagerID, "RequestDock"}: func(p *Proxy, a []any) (any, error) {
		file, err := argString(a, 0)
		if err != nil {
			return false, err
		}
		index := -1
		if len(a) > 1 {
			if index, err = argInt(a, 1); err != nil {
				return false, err
			}
		}
		return p.RequestDock(file, index), nil
	},
	{capability.TaskManagerID, "IsDocked"}: func(p *Proxy, a []any) (any, error) {
		file, err := argString(a, 0)
		if err != nil {
			return false, err
		}
		return p.IsDocked(file), nil
	},
	{capability.TaskManagerID, "RequestUndock"}: func(p *Proxy, a []any) (any, error) {
		file, err := argString(a, 0)
		if err != nil {
			return false, err
		}
		return p.RequestUndock(file), nil
	},
	{capability.TrayID, "plugins"}: func(p *Proxy, _ []any) (any, error) {
		return p.Plugins(), nil
	},
	{capability.TrayID, "setItemOnDock"}: func(p *Proxy, a []any) (any, error) {
		settingKey, err := argString(a, 0)
		if err != nil {
			return nil, err
		}
		itemKey, err := argString(a, 1)
		if err != nil {
			return nil, err
		}
		visible, err := argBool(a, 2)
		if err != nil {
			return nil, err
		}
		p.SetItemOnDock(settingKey, itemKey, visible)
		return nil, nil
	},
	{capability.ClipboardItemID, "dockItemInfo"}: itemInfo(capability.ClipboardItemID),
	{capability.SearchItemID, "dockItemInfo"}:    itemInfo(capability.SearchItemID),
	{capability.ClipboardItemID, "setVisible"}:   itemVisible(capability.ClipboardItemID),
	{capability.SearchItemID, "setVisible"}:      itemVisible(capability.SearchItemID),

	{PanelID, "GetLoadedPlugins"}: func(p *Proxy, _ []any) (any, error) { return p.GetLoadedPlugins(), nil },
	{PanelID, "ReloadPlugins"}: func(p *Proxy, _ []any) (any, error) {
		p.ReloadPlugins()
		return nil, nil
	},
	{PanelID, "callShow"}: func(p *Proxy, _ []any) (any, error) {
		p.CallShow()
		return nil, nil
	},
	{PanelID, "geometry"}:           func(p *Proxy, _ []any) (any, error) { return p.Geometry(), nil },
	{PanelID, "frontendWindowRect"}: func(p *Proxy, _ []any) (any, error) { return p.FrontendWindowRect(), nil },
	{PanelID, "position"}:           func(p *Proxy, _ []any) (any, error) { return p.Position(), nil },
	{PanelID, "hideMode"}:           func(p *Proxy, _ []any) (any, error) { return p.HideMode(), nil },
	{PanelID, "hideState"}:          func(p *Proxy, _ []any) (any, error) { return p.HideState(), nil },
	{PanelID, "setPosition"}: func(p *Proxy, a []any) (any, error) {
		v, err := argInt(a, 0)
		if err != nil {
			return nil, err
		}
		p.SetPosition(Position(v))
		return nil, nil
	},
	{PanelID, "setHideMode"}: func(p *Proxy, a []any) (any, error) {
		v, err := argInt(a, 0)
		if err != nil {
			return nil, err
		}
		p.SetHideMode(HideMode(v))
		return nil, nil
	},
	{PanelID, "resizeDock"}: func(p *Proxy, a []any) (any, error) {
		offset, err := argInt(a, 0)
		if err != nil {
			return nil, err
		}
		dragging := false
		if len(a) > 1 {
			if dragging, err = argBool(a, 1); err != nil {
				return nil, err
			}
		}
		p.ResizeDock(offset, dragging)
		return nil, nil
	},
	{PanelID, "setPluginVisible"}: func(p *Proxy, a []any) (any, error) {
		name, err := argString(a, 0)
		if err != nil {
			return nil, err
		}
		visible, err := argBool(a, 1)
		if err != nil {
			return nil, err
		}
		p.SetPluginVisible(name, visible)
		return nil, nil
	},
	{PanelID, "getPluginVisible"}: func(p *Proxy, a []any) (any, error) {
		name, err := argString(a, 0)
		if err != nil {
			return true, err
		}
		return p.GetPluginVisible(name), nil
	},
	{PanelID, "getPluginKey"}: func(p *Proxy, a []any) (any, error) {
		name, err := argString(a, 0)
		if err != nil {
			return "", err
		}
		return p.GetPluginKey(name), nil
	},
}

// Forward performs op on the applet registered as capabilityID by name.
// It is the untyped entry point used by generic callers such as the command
// line; typed callers use the Proxy methods directly.
func (p *Proxy) Forward(capabilityID, op string, args ...any) (any, error) {
	fn, ok := forwardTable[opKey{capabilityID, op}]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, capabilityID, op)
	}
	return fn(p, args)
}

// Operations lists the forwardable operations of capabilityID.
func Operations(capabilityID string) []string {
	var out []string
	for k := range forwardTable {
		if k.capability == capabilityID {
			out = append(out, k.op)
		}
	}
	return out
}

func itemInfo(id string) forwardFunc {
	return func(p *Proxy, _ []any) (any, error) {
		it, ok := p.item(id)
		if !ok {
			return capability.DockItemInfo{}, nil
		}
		info, _ := it.DockItemInfo()
		return info, nil
	}
}

func itemVisible(id string) forwardFunc {
	return func(p *Proxy, a []any) (any, error) {
		visible, err := argBool(a, 0)
		if err != nil {
			return nil, err
		}
		if it, ok := p.item(id); ok {
			p.async(id+".setVisible", func() { it.SetVisible(visible) })
		}
		return nil, nil
	}
}

func argString(a []any, i int) (string, error) {
	if i >= len(a) {
		return "", fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	s, ok := a[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is %T, want string", ErrBadArguments, i, a[i])
	}
	return s, nil
}

func argBool(a []any, i int) (bool, error) {
	if i >= len(a) {
		return false, fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	b, ok := a[i].(bool)
	if !ok {
		return false, fmt.Errorf("%w: argument %d is %T, want bool", ErrBadArguments, i, a[i])
	}
	return b, nil
}

func argInt(a []any, i int) (int, error) {
	if i >= len(a) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	switch v := a[i].(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint32:
		return int(v), nil
	case Position:
		return int(v), nil
	case HideMode:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %d is %T, want integer", ErrBadArguments, i, a[i])
	}
}
