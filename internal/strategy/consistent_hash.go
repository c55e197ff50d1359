package strategy

import (
	"hash/crc32"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/angeloszaimis/pokeapi-edge/internal/instance"
)

type clientHashStrategy struct {
	virtualNodes int
	ring         atomic.Pointer[ringSnapshot]
}

type ringSnapshot struct {
	members   string
	positions []uint32
	owners    map[uint32]*instance.Instance
}

func membership(instances []*instance.Instance) string {
	ids := make([]string, len(instances))
	for i, inst := range instances {
		ids[i] = inst.ID()
	}
	return strings.Join(ids, ",")
}

func buildRing(instances []*instance.Instance, vnodes int) *ringSnapshot {
	rs := &ringSnapshot{
		members:   membership(instances),
		positions: make([]uint32, 0, len(instances)*vnodes),
		owners:    make(map[uint32]*instance.Instance),
	}

	for _, inst := range instances {
		for i := 0; i < vnodes; i++ {
			hash := crc32.ChecksumIEEE([]byte(inst.ID() + "#" + strconv.Itoa(i)))

			rs.positions = append(rs.positions, hash)
			rs.owners[hash] = inst
		}
	}

	sort.Slice(rs.positions, func(i, j int) bool { return rs.positions[i] < rs.positions[j] })
	return rs
}

func (r *ringSnapshot) lookup(hash uint32) *instance.Instance {
	if len(r.positions) == 0 {
		return nil
	}

	idx := sort.Search(len(r.positions), func(i int) bool {
		return r.positions[i] >= hash
	})
	if idx == len(r.positions) {
		idx = 0
	}

	return r.owners[r.positions[idx]]
}

// Select maps key onto the ring. The ring is rebuilt whenever the set of
// instances differs from the one it was built from.
func (s *clientHashStrategy) Select(instances []*instance.Instance, key string) *instance.Instance {
	if len(instances) == 0 {
		return nil
	}

	rs := s.ring.Load()
	if rs == nil || rs.members != membership(instances) {
		rs = buildRing(instances, s.virtualNodes)
		s.ring.Store(rs)
	}

	return rs.lookup(crc32.ChecksumIEEE([]byte(key)))
}

func NewClientHashStrategy(virtualNodes int) Strategy {
	if virtualNodes <= 0 {
		virtualNodes = 100
	}
	return &clientHashStrategy{virtualNodes: virtualNodes}
}
