package engine

import (
	"github.com/relink-dev/relink/graph"
	"github.com/relink-dev/relink/query"
	"github.com/relink-dev/relink/result"
)

const (
	kindField = "field"
	kindLink  = "link"
)

type batchKey struct {
	node   string
	member string
	kind   string
}

func (k batchKey) String() string {
	node := k.node
	if node == "" {
		node = "root"
	}
	return node + "." + k.member
}

// subscriber is one result slot awaiting a batch element. Several
// subscribers may share an identifier index when parents share a target.
type subscriber struct {
	obj  *result.Object
	path result.Path
	qn   *query.Node // nested selection, links only
}

// batch accumulates the deduplicated identifiers and per-identifier
// subscribers for one (node, member) key at one level.
type batch struct {
	key      batchKey
	link     *graph.Link // nil for field batches
	idents   []graph.Ident
	identIdx map[graph.Ident]int
	subs     [][]subscriber
}

func (b *batch) add(id graph.Ident, sub subscriber, dedup bool) {
	if dedup {
		if i, ok := b.identIdx[id]; ok {
			b.subs[i] = append(b.subs[i], sub)
			return
		}
		b.identIdx[id] = len(b.idents)
	}
	b.idents = append(b.idents, id)
	b.subs = append(b.subs, []subscriber{sub})
}

// batchMap preserves first-appearance order of batch keys, mirroring the
// order entities and branches requested them.
type batchMap struct {
	batches []*batch
	index   map[batchKey]int
	dedup   bool
}

func newBatchMap(dedup bool) *batchMap {
	return &batchMap{index: make(map[batchKey]int), dedup: dedup}
}

func (m *batchMap) get(key batchKey, link *graph.Link) *batch {
	if i, ok := m.index[key]; ok {
		return m.batches[i]
	}
	b := &batch{key: key, link: link, identIdx: make(map[graph.Ident]int)}
	m.index[key] = len(m.batches)
	m.batches = append(m.batches, b)
	return b
}

// formBatches walks one level's entities and groups requested members by
// batch key across every branch.
func formBatches(entities []*entity, dedup bool) (fields, links []*batch) {
	fm := newBatchMap(dedup)
	lm := newBatchMap(dedup)

	for _, ent := range entities {
		nodeName := ent.qn.Node.Name
		for _, name := range ent.qn.Fields {
			b := fm.get(batchKey{node: nodeName, member: name, kind: kindField}, nil)
			b.add(ent.id, subscriber{obj: ent.obj, path: ent.obj.Path()}, dedup)
		}
		for _, ql := range ent.qn.Links {
			b := lm.get(batchKey{node: nodeName, member: ql.Link.Name, kind: kindLink}, ql.Link)
			b.add(ent.id, subscriber{obj: ent.obj, path: ent.obj.Path(), qn: ql.Node}, dedup)
		}
	}
	return fm.batches, lm.batches
}
