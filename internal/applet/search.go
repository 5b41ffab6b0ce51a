package applet

// FindAll returns every applet below root whose plugin id equals pluginID,
// in breadth-first discovery order. root itself is not matched. A nil or
// non-container root yields an empty result.
func FindAll(root Node, pluginID string) []Node {
	var out []Node
	Walk(root, func(n Node) bool {
		if n.PluginID() == pluginID {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindFirst returns the first FindAll match.
func FindFirst(root Node, pluginID string) (Node, bool) {
	var found Node
	Walk(root, func(n Node) bool {
		if n.PluginID() == pluginID {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Walk visits every applet below root breadth first. Within a container the
// children are visited in registration order. fn returns false to stop.
//
// Children registered while the walk is running may be missed by this pass
// but never cause a failure.
func Walk(root Node, fn func(Node) bool) {
	rc, ok := root.(Container)
	if !ok || isNilContainer(rc) {
		return
	}
	queue := []Container{rc}
	for len(queue) > 0 {
		c := queue[0]
		queue[0] = nil
		queue = queue[1:]
		for _, child := range c.Applets() {
			if child == nil {
				continue
			}
			if sub, ok := child.(Container); ok && !isNilContainer(sub) {
				queue = append(queue, sub)
			}
			if !fn(child) {
				return
			}
		}
	}
}

// isNilContainer catches a typed nil *Containment stored in the interface.
func isNilContainer(c Container) bool {
	cc, ok := c.(*Containment)
	return ok && cc == nil
}
