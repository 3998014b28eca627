package numa

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

func parse(t *testing.T, y string) *topology.Descriptor {
	t.Helper()
	d, err := topology.Parse([]byte(y))
	require.NoError(t, err)
	return d
}

const twoSocketSncPmem = `
snc: {enabled: true, clusters: 2}
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}]}
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0x3}
  - {socket: 0, type: 1lm-ddr, base: 0x80000000, size: 0x80000000, imcBitmap: 0xc, node: 2}
  - {socket: 0, type: 1lm-appdirect, base: 0x400000000, size: 0x100000000, imcBitmap: 0xf}
  - {socket: 1, type: reserved, base: 0x500000000, size: 0x4000000}
  - {socket: 1, type: 1lm-ddr, base: 0x100000000, size: 0x80000000, imcBitmap: 0x1, node: 4}
  - {socket: 1, type: 1lm-ddr, base: 0x180000000, size: 0x80000000, imcBitmap: 0x4, node: 6}
  - {socket: 1, type: 1lm-ddr, base: 0x180000000, size: 0x80000000, imcBitmap: 0x4, node: 6}
  - {socket: 1, type: 1lm-appdirect, base: 0x600000000, size: 0x100000000, imcBitmap: 0xf, node: 4}
`

func TestAssignVolatileThenPersistent(t *testing.T) {
	ds, err := Assign(parse(t, twoSocketSncPmem), nil)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, ds.VolatileIDs())
	assert.Equal(t, []int{4, 5}, ds.PersistentIDs())
	assert.Equal(t, 6, ds.NextDomainID)
	assert.Equal(t, 5, ds.LastDomainID())
	assert.Equal(t, 2, ds.SkippedEntries)
	assert.Equal(t, []int{0, 1, 4, -1, 2, 3, -1, 5}, ds.RegionDomain)

	id, ok := ds.MemoryDomainOf(5)
	assert.True(t, ok)
	assert.Equal(t, 3, id)
	_, ok = ds.MemoryDomainOf(3)
	assert.False(t, ok)

	assert.Equal(t, []int{0, 1, 2, 3}, lo.Map(ds.ValidProcessors(), func(p ProcessorDomain, _ int) int { return p.ID }))
	assert.Equal(t, 1, ds.Processor[3].Socket)
}

// 持久域编号总是大于所有易失性域
func TestPersistentAfterVolatile(t *testing.T) {
	ds, err := Assign(parse(t, twoSocketSncPmem), nil)
	require.NoError(t, err)
	maxVol := lo.Max(ds.VolatileIDs())
	for _, id := range ds.PersistentIDs() {
		assert.Greater(t, id, maxVol)
	}
}

func TestSocketWithoutMemory(t *testing.T) {
	d := parse(t, `
snc: {enabled: true, clusters: 2}
sockets: [{id: 0}, {id: 1}]
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0x1}
  - {socket: 0, type: 1lm-ddr, base: 0x80000000, size: 0x80000000, imcBitmap: 0x4}
  - {socket: 0, type: 1lm-appdirect, base: 0x400000000, size: 0x100000000}
`)
	ds, err := Assign(d, nil)
	require.NoError(t, err)

	// 插槽0的两个易失性域之后为插槽1预留两个编号
	assert.Equal(t, []int{0, 1}, ds.VolatileIDs())
	assert.Equal(t, []int{4}, ds.PersistentIDs())
	assert.Equal(t, 5, ds.NextDomainID)

	procs := ds.ValidProcessors()
	require.Len(t, procs, 4)
	assert.Equal(t, ProcessorDomain{ID: 2, Valid: true, Socket: 1}, procs[2])
	assert.Equal(t, ProcessorDomain{ID: 3, Valid: true, Socket: 1}, procs[3])

	for _, m := range ds.ValidMemory() {
		assert.Equal(t, 0, m.Socket)
	}
}

func TestMixModeOffsetsTwoLevelDomains(t *testing.T) {
	d := parse(t, `
volMemMode: mix
sockets:
  - {id: 0, ddrCacheSizes: [0x40000000, 0x40000000, 0x40000000, 0x40000000]}
  - {id: 1, ddrCacheSizes: [0x40000000, 0x40000000, 0x40000000, 0x40000000]}
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0xf}
  - {socket: 1, type: 1lm-ddr, base: 0x80000000, size: 0x80000000, imcBitmap: 0xf}
  - {socket: 0, type: 2lm-ddr-cache, base: 0x100000000, size: 0x80000000, imcBitmap: 0x3}
  - {socket: 1, type: 2lm-ddr-cache, base: 0x180000000, size: 0x80000000, imcBitmap: 0x1}
smbios: []
`)
	ds, err := Assign(d, d.Smbios)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, ds.VolatileIDs())

	cache := ds.Cacheable()
	require.Len(t, cache, 2)
	assert.Equal(t, 2, cache[0].ID)
	assert.Equal(t, uint64(0x80000000), cache[0].SideCacheSize)
	assert.Equal(t, uint64(0x40000000), cache[1].SideCacheSize)
	assert.Empty(t, cache[0].SmbiosHandles)
}

func TestSideCacheCountsEachImcOnce(t *testing.T) {
	d := parse(t, `
volMemMode: 2lm
limits: {maxImc: 2, channelsPerImc: 1, dimmsPerChannel: 2}
sockets:
  - {id: 0, imcSizes: [0x100000000, 0x200000000]}
memoryMap:
  - {socket: 0, type: 2lm-ddr-cache, base: 0x0, size: 0x80000000, imcBitmap: 0x1}
  - {socket: 0, type: 2lm-ddr-cache, base: 0x80000000, size: 0x80000000, imcBitmap: 0x3}
smbios:
  - {handle: 0x10, cacheDram: true}
  - {handle: 0x11, cacheDram: false}
  - {handle: 0x12, cacheDram: true}
  - {handle: 0x13, cacheDram: true}
`)
	ds, err := Assign(d, d.Smbios)
	require.NoError(t, err)
	m := ds.Memory[0]
	assert.True(t, m.Cacheable)
	assert.Equal(t, uint64(0x300000000), m.SideCacheSize)
	assert.Equal(t, []uint16{0x10, 0x12}, m.SmbiosHandles)
}

func TestVirtualNumaSplitsClusters(t *testing.T) {
	d := parse(t, `
virtualNuma: {enabled: true, clusters: 2}
sockets: [{id: 0}]
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0xf}
  - {socket: 0, type: 1lm-ddr, base: 0x80000000, size: 0x80000000, imcBitmap: 0xf}
`)
	ds, err := Assign(d, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ds.VolatileIDs())
	assert.Len(t, ds.ValidProcessors(), 2)
}

func TestCapacityExceeded(t *testing.T) {
	d := parse(t, `
limits: {maxSockets: 1, maxImc: 1, crsEntriesPerNode: 1}
sockets: [{id: 0}]
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000}
  - {socket: 0, type: 1lm-appdirect, base: 0x80000000, size: 0x80000000}
`)
	_, err := Assign(d, nil)
	assert.Equal(t, acpi.ErrCapacity, errors.Cause(err))
}

func TestThreadDomain(t *testing.T) {
	d := parse(t, `
snc: {enabled: true, clusters: 2}
sockets: [{id: 0, totalCha: 8}, {id: 1, totalCha: 8}]
`)
	threads := []topology.Thread{
		{Socket: 0, ThreadID: 0, ChaID: 0},
		{Socket: 0, ThreadID: 9, ChaID: 5},
		{Socket: 1, ThreadID: 3, ChaID: 2},
	}
	assert.True(t, CollocatedChaPresent(threads))
	assert.Equal(t, 0, ThreadDomain(d, threads[0], true))
	assert.Equal(t, 1, ThreadDomain(d, threads[1], true))
	assert.Equal(t, 2, ThreadDomain(d, threads[2], true))

	// 没有CHA编号时按线程号划分，每簇4个CHA x 2个线程
	assert.Equal(t, 1, ThreadDomain(d, threads[1], false))
	assert.Equal(t, 2, ThreadDomain(d, threads[2], false))

	assert.False(t, CollocatedChaPresent([]topology.Thread{{ChaID: 0}, {ChaID: topology.NoCollocatedCha}}))
	assert.False(t, CollocatedChaPresent(nil))
}
