package designs

import (
	"reflect"
	"sort"
)

// NodeChange reports a node present in both versions with differing
// attributes, carrying both sides.
type NodeChange struct {
	NodeID string `json:"node_id"`
	Source Node   `json:"source"`
	Target Node   `json:"target"`
}

// ConnectionChange is the connection counterpart of NodeChange.
type ConnectionChange struct {
	ConnectionID string     `json:"connection_id"`
	Source       Connection `json:"source"`
	Target       Connection `json:"target"`
}

// NodeDiff partitions nodes into added/removed/modified relative to a source
// version.
type NodeDiff struct {
	Added    []Node       `json:"added"`
	Removed  []Node       `json:"removed"`
	Modified []NodeChange `json:"modified"`
}

// ConnectionDiff partitions connections the same way.
type ConnectionDiff struct {
	Added    []Connection       `json:"added"`
	Removed  []Connection       `json:"removed"`
	Modified []ConnectionChange `json:"modified"`
}

// VersionDiff is the structural comparison of two version snapshots.
// "added" means present in target and absent in source, keyed by id; the
// partition is antisymmetric: swapping arguments swaps added and removed.
type VersionDiff struct {
	Nodes       NodeDiff       `json:"nodes"`
	Connections ConnectionDiff `json:"connections"`
}

// CompareGraphs computes the structural diff between two graphs. Equality is
// deep: two elements with the same id count as modified when any attribute
// differs.
func CompareGraphs(sourceNodes []Node, sourceConns []Connection, targetNodes []Node, targetConns []Connection) *VersionDiff {
	diff := &VersionDiff{
		Nodes: NodeDiff{
			Added:    []Node{},
			Removed:  []Node{},
			Modified: []NodeChange{},
		},
		Connections: ConnectionDiff{
			Added:    []Connection{},
			Removed:  []Connection{},
			Modified: []ConnectionChange{},
		},
	}

	sourceNodeByID := make(map[string]Node, len(sourceNodes))
	for _, n := range sourceNodes {
		sourceNodeByID[n.ID] = n
	}
	targetNodeByID := make(map[string]Node, len(targetNodes))
	for _, n := range targetNodes {
		targetNodeByID[n.ID] = n
	}

	for _, n := range targetNodes {
		src, ok := sourceNodeByID[n.ID]
		if !ok {
			diff.Nodes.Added = append(diff.Nodes.Added, n)
			continue
		}
		if !nodesEqual(src, n) {
			diff.Nodes.Modified = append(diff.Nodes.Modified, NodeChange{
				NodeID: n.ID,
				Source: src,
				Target: n,
			})
		}
	}
	for _, n := range sourceNodes {
		if _, ok := targetNodeByID[n.ID]; !ok {
			diff.Nodes.Removed = append(diff.Nodes.Removed, n)
		}
	}

	sourceConnByID := make(map[string]Connection, len(sourceConns))
	for _, c := range sourceConns {
		sourceConnByID[c.ID] = c
	}
	targetConnByID := make(map[string]Connection, len(targetConns))
	for _, c := range targetConns {
		targetConnByID[c.ID] = c
	}

	for _, c := range targetConns {
		src, ok := sourceConnByID[c.ID]
		if !ok {
			diff.Connections.Added = append(diff.Connections.Added, c)
			continue
		}
		if src != c {
			diff.Connections.Modified = append(diff.Connections.Modified, ConnectionChange{
				ConnectionID: c.ID,
				Source:       src,
				Target:       c,
			})
		}
	}
	for _, c := range sourceConns {
		if _, ok := targetConnByID[c.ID]; !ok {
			diff.Connections.Removed = append(diff.Connections.Removed, c)
		}
	}

	diff.sortForDeterminism()
	return diff
}

// CompareVersions diffs two snapshots.
func CompareVersions(source, target *Version) *VersionDiff {
	return CompareGraphs(source.NodesSnapshot, source.ConnectionsSnapshot,
		target.NodesSnapshot, target.ConnectionsSnapshot)
}

// ChangesAgainst turns a diff into version change entries, one per element.
func (d *VersionDiff) ChangesAgainst() []ChangeEntry {
	changes := []ChangeEntry{}
	for _, n := range d.Nodes.Added {
		changes = append(changes, ChangeEntry{Kind: ChangeKindAdd, Description: "added node " + n.ID})
	}
	for _, n := range d.Nodes.Removed {
		changes = append(changes, ChangeEntry{Kind: ChangeKindRemove, Description: "removed node " + n.ID})
	}
	for _, m := range d.Nodes.Modified {
		changes = append(changes, ChangeEntry{Kind: ChangeKindModify, Description: "modified node " + m.NodeID})
	}
	for _, c := range d.Connections.Added {
		changes = append(changes, ChangeEntry{Kind: ChangeKindAdd, Description: "added connection " + c.ID})
	}
	for _, c := range d.Connections.Removed {
		changes = append(changes, ChangeEntry{Kind: ChangeKindRemove, Description: "removed connection " + c.ID})
	}
	for _, m := range d.Connections.Modified {
		changes = append(changes, ChangeEntry{Kind: ChangeKindModify, Description: "modified connection " + m.ConnectionID})
	}
	return changes
}

// IsEmpty reports whether the two graphs were structurally identical.
func (d *VersionDiff) IsEmpty() bool {
	return len(d.Nodes.Added) == 0 && len(d.Nodes.Removed) == 0 && len(d.Nodes.Modified) == 0 &&
		len(d.Connections.Added) == 0 && len(d.Connections.Removed) == 0 && len(d.Connections.Modified) == 0
}

func nodesEqual(a, b Node) bool {
	if a.ID != b.ID || a.Type != b.Type || a.Name != b.Name || a.Position != b.Position {
		return false
	}
	if len(a.Config) == 0 && len(b.Config) == 0 {
		return true
	}
	return reflect.DeepEqual(a.Config, b.Config)
}

func (d *VersionDiff) sortForDeterminism() {
	sort.Slice(d.Nodes.Added, func(i, j int) bool { return d.Nodes.Added[i].ID < d.Nodes.Added[j].ID })
	sort.Slice(d.Nodes.Removed, func(i, j int) bool { return d.Nodes.Removed[i].ID < d.Nodes.Removed[j].ID })
	sort.Slice(d.Nodes.Modified, func(i, j int) bool { return d.Nodes.Modified[i].NodeID < d.Nodes.Modified[j].NodeID })
	sort.Slice(d.Connections.Added, func(i, j int) bool { return d.Connections.Added[i].ID < d.Connections.Added[j].ID })
	sort.Slice(d.Connections.Removed, func(i, j int) bool { return d.Connections.Removed[i].ID < d.Connections.Removed[j].ID })
	sort.Slice(d.Connections.Modified, func(i, j int) bool {
		return d.Connections.Modified[i].ConnectionID < d.Connections.Modified[j].ConnectionID
	})
}
