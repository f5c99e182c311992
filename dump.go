package rtree

// EncodeEntry converts a stored item into the payload slot of an
// EntrySnapshot. The default (used when the tree isn't built with
// WithCodec) stores the Item value as-is, so non-bbox payload fields
// round-trip as opaque data without the tree ever inspecting them — the
// actual encoding medium (JSON, gob, …) is left entirely to the caller.
type EncodeEntry func(item Item) interface{}

// DecodeEntry is the inverse of EncodeEntry, reconstructing an Item from the
// payload previously produced by EncodeEntry.
type DecodeEntry func(payload interface{}) Item

func defaultEncodeEntry(item Item) interface{} { return item }
func defaultDecodeEntry(payload interface{}) Item {
	item, _ := payload.(Item)
	return item
}

// WithCodec overrides how leaf payloads are flattened into / reconstructed
// from a Snapshot, for callers whose host environment wants dump records to
// carry plain data (e.g. before feeding them to an external JSON/gob
// encoder) rather than opaque Item values.
func WithCodec(encode EncodeEntry, decode DecodeEntry) Option {
	return func(r *RTree) {
		r.encodeEntry = encode
		r.decodeEntry = decode
	}
}

// Snapshot is a structural dump of a tree: enough to reconstruct an
// identical node graph via Restore. It is not an encoding format itself —
// marshaling a Snapshot to bytes (JSON, gob, …) is left to the caller.
type Snapshot struct {
	MaxEntries int
	MinEntries int
	Root       NodeSnapshot
}

// NodeSnapshot is one node of a dumped tree. When IsLeaf is true, Entries
// holds the leaf's payloads and Children is empty; otherwise Children holds
// the node's sub-nodes and Entries is empty.
type NodeSnapshot struct {
	Bounds   Rect
	Height   int
	IsLeaf   bool
	Children []NodeSnapshot
	Entries  []EntrySnapshot
}

// EntrySnapshot is one leaf entry: its bounding box plus an opaque,
// caller-defined payload produced by EncodeEntry.
type EntrySnapshot struct {
	Bounds  Rect
	Payload interface{}
}

// Dump returns a structural snapshot of the tree, suitable for Restore (in
// this process or another) or for handing to an external serializer.
func (r *RTree) Dump() Snapshot {
	return Snapshot{
		MaxEntries: r.maxEntries,
		MinEntries: r.minEntries,
		Root:       r.dumpNode(r.root),
	}
}

func (r *RTree) dumpNode(n *node) NodeSnapshot {
	snap := NodeSnapshot{
		Bounds: n.bounds,
		Height: n.height,
		IsLeaf: n.leaf,
	}
	if n.leaf {
		snap.Entries = make([]EntrySnapshot, len(n.items))
		for i, item := range n.items {
			snap.Entries[i] = EntrySnapshot{
				Bounds:  r.bbox(item),
				Payload: r.encode(item),
			}
		}
	} else {
		snap.Children = make([]NodeSnapshot, len(n.children))
		for i, child := range n.children {
			snap.Children[i] = r.dumpNode(child)
		}
	}
	return snap
}

// Restore replaces the tree's contents with the structure described by
// snap, trusting its Height/IsLeaf fields verbatim rather than
// recomputing them. maxEntries/minEntries are taken from the snapshot.
func (r *RTree) Restore(snap Snapshot) *RTree {
	r.maxEntries = snap.MaxEntries
	r.minEntries = snap.MinEntries
	r.root = r.restoreNode(snap.Root)
	return r
}

func (r *RTree) restoreNode(snap NodeSnapshot) *node {
	n := &node{
		bounds: snap.Bounds,
		height: snap.Height,
		leaf:   snap.IsLeaf,
	}
	if snap.IsLeaf {
		n.items = make([]Item, len(snap.Entries))
		for i, entry := range snap.Entries {
			n.items[i] = r.decode(entry.Payload)
		}
	} else {
		n.children = make([]*node, len(snap.Children))
		for i, child := range snap.Children {
			n.children[i] = r.restoreNode(child)
		}
	}
	return n
}

func (r *RTree) encode(item Item) interface{} {
	if r.encodeEntry != nil {
		return r.encodeEntry(item)
	}
	return defaultEncodeEntry(item)
}

func (r *RTree) decode(payload interface{}) Item {
	if r.decodeEntry != nil {
		return r.decodeEntry(payload)
	}
	return defaultDecodeEntry(payload)
}
