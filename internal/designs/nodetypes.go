package designs

import "sort"

// NodeTypeSpec declares how the validator treats one node type: which config
// keys must be present, whether the type can start a run, and whether it may
// legitimately sit on a cycle.
type NodeTypeSpec struct {
	Type           string   `json:"type"`
	DisplayName    string   `json:"display_name"`
	RequiredConfig []string `json:"required_config"`
	IsEntry        bool     `json:"is_entry"`
	AllowsLoop     bool     `json:"allows_loop"`
}

// NodeTypeRegistry maps type tags to their specs. The registry is extensible:
// unknown types fail validation rather than being guessed at.
type NodeTypeRegistry struct {
	specs map[string]NodeTypeSpec
}

// NewNodeTypeRegistry creates an empty registry.
func NewNodeTypeRegistry() *NodeTypeRegistry {
	return &NodeTypeRegistry{specs: make(map[string]NodeTypeSpec)}
}

// Register adds or replaces a spec.
func (r *NodeTypeRegistry) Register(spec NodeTypeSpec) {
	r.specs[spec.Type] = spec
}

// Get returns the spec for a type tag.
func (r *NodeTypeRegistry) Get(nodeType string) (NodeTypeSpec, bool) {
	spec, ok := r.specs[nodeType]
	return spec, ok
}

// Types returns the registered type tags, sorted.
func (r *NodeTypeRegistry) Types() []string {
	out := make([]string, 0, len(r.specs))
	for t := range r.specs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns the built-in node types of the designer.
func DefaultRegistry() *NodeTypeRegistry {
	r := NewNodeTypeRegistry()

	r.Register(NodeTypeSpec{
		Type:        "trigger",
		DisplayName: "Trigger",
		IsEntry:     true,
	})
	r.Register(NodeTypeSpec{
		Type:        "start",
		DisplayName: "Start",
		IsEntry:     true,
	})
	r.Register(NodeTypeSpec{
		Type:           "schedule",
		DisplayName:    "Schedule Trigger",
		RequiredConfig: []string{"cron"},
		IsEntry:        true,
	})
	r.Register(NodeTypeSpec{
		Type:        "action",
		DisplayName: "Action",
	})
	r.Register(NodeTypeSpec{
		Type:           "http_request",
		DisplayName:    "HTTP Request",
		RequiredConfig: []string{"url", "method"},
	})
	r.Register(NodeTypeSpec{
		Type:           "condition",
		DisplayName:    "Condition",
		RequiredConfig: []string{"expression"},
	})
	r.Register(NodeTypeSpec{
		Type:           "loop",
		DisplayName:    "Loop",
		RequiredConfig: []string{"items"},
		AllowsLoop:     true,
	})
	r.Register(NodeTypeSpec{
		Type:           "delay",
		DisplayName:    "Delay",
		RequiredConfig: []string{"duration"},
	})
	r.Register(NodeTypeSpec{
		Type:           "script",
		DisplayName:    "Script",
		RequiredConfig: []string{"code"},
	})
	r.Register(NodeTypeSpec{
		Type:           "notify",
		DisplayName:    "Notification",
		RequiredConfig: []string{"channel", "message"},
	})
	r.Register(NodeTypeSpec{
		Type:        "end",
		DisplayName: "End",
	})

	return r
}
