package sway

// NodeType is the "type" field of a tree node.
type NodeType string

const (
	NodeRoot        NodeType = "root"
	NodeOutput      NodeType = "output"
	NodeWorkspace   NodeType = "workspace"
	NodeCon         NodeType = "con"
	NodeFloatingCon NodeType = "floating_con"
)

// WindowProperties carries the X11 attributes of XWayland windows.
type WindowProperties struct {
	Class    string `json:"class"`
	Instance string `json:"instance"`
	Title    string `json:"title"`
}

// Node is a container in the layout tree. Only the fields this module
// reads are decoded.
type Node struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Type             NodeType          `json:"type"`
	Focused          bool              `json:"focused"`
	AppID            *string           `json:"app_id"`
	PID              int               `json:"pid"`
	Window           *uint32           `json:"window"`
	WindowProperties *WindowProperties `json:"window_properties"`
	Nodes            []*Node           `json:"nodes"`
	FloatingNodes    []*Node           `json:"floating_nodes"`
}

// AppIDValue returns the Wayland app_id or "".
func (n *Node) AppIDValue() string {
	if n.AppID == nil {
		return ""
	}
	return *n.AppID
}

// ClassValue returns the X11 class from window_properties or "".
func (n *Node) ClassValue() string {
	if n.WindowProperties == nil {
		return ""
	}
	return n.WindowProperties.Class
}

// X11Window returns the X11 window id of an XWayland window.
func (n *Node) X11Window() (uint32, bool) {
	if n.Window == nil || *n.Window == 0 {
		return 0, false
	}
	return *n.Window, true
}

// IsWindow reports whether the node is a leaf container holding a view.
func (n *Node) IsWindow() bool {
	return (n.Type == NodeCon || n.Type == NodeFloatingCon) && len(n.Nodes) == 0
}

// Walk visits the tree breadth-first, tiling children before floating ones.
func (n *Node) Walk(visit func(*Node)) {
	queue := []*Node{n}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node == nil {
			continue
		}
		visit(node)
		queue = append(queue, node.Nodes...)
		queue = append(queue, node.FloatingNodes...)
	}
}
