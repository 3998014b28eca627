package slit

import (
	"testing"

	"github.com/pkg/errors"
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

func rows(m *Matrix) [][]uint8 {
	out := make([][]uint8, m.N)
	for i := range out {
		out[i] = append([]uint8(nil), m.Localities()[i*m.N:(i+1)*m.N]...)
	}
	return out
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want [][]uint8
	}{
		{
			name: "two linked sockets",
			desc: `
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}]}
`,
			want: [][]uint8{{10, 20}, {20, 10}},
		},
		{
			name: "one socket two clusters",
			desc: `
snc: {enabled: true, clusters: 2}
sockets: [{id: 0}]
`,
			want: [][]uint8{{10, 11}, {11, 10}},
		},
		{
			name: "persistent memory on socket 0",
			desc: `
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}]}
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000}
  - {socket: 1, type: 1lm-ddr, base: 0x80000000, size: 0x80000000}
  - {socket: 0, type: 1lm-appdirect, base: 0x400000000, size: 0x100000000}
  - {socket: 0, type: 1lm-appdirect-reserved, base: 0x500000000, size: 0x100000000}
`,
			want: [][]uint8{
				{10, 20, 17},
				{20, 10, 28},
				{17, 28, 10},
			},
		},
		{
			name: "unlinked socket is two hops",
			desc: `
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}]}
  - {id: 2}
`,
			want: [][]uint8{
				{10, 20, 30},
				{20, 10, 30},
				{30, 30, 10},
			},
		},
		{
			name: "mixed 1lm and 2lm",
			desc: `
volMemMode: mix
sockets: [{id: 0}]
`,
			want: [][]uint8{{10, 11}, {11, 10}},
		},
		{
			name: "fpga on socket 1",
			desc: `
fpgaPresent: 0x2
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}]}
`,
			want: [][]uint8{
				{10, 20, 20},
				{20, 10, 10},
				{20, 10, 10},
			},
		},
		{
			name: "virtual numa halves share a cluster",
			desc: `
snc: {enabled: true, clusters: 2}
virtualNuma: {enabled: true, clusters: 2}
sockets: [{id: 0}]
`,
			want: [][]uint8{
				{10, 10, 11, 11},
				{10, 10, 11, 11},
				{11, 11, 10, 10},
				{11, 11, 10, 10},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := Build(parse(t, tt.desc), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows(m))
		})
	}
}

func TestSparseSocketIDs(t *testing.T) {
	// 物理插槽0和2，逻辑序号0和1
	d := parse(t, `
socketPresent: 0x5
sockets:
  - {id: 0, kti: [{peer: 2}]}
  - {id: 2, kti: [{peer: 0}]}
memoryMap:
  - {socket: 2, type: 1lm-appdirect, base: 0x400000000, size: 0x100000000}
`)
	m, err := Build(d, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]uint8{
		{10, 20, 28},
		{20, 10, 17},
		{28, 17, 10},
	}, rows(m))
}

func TestUnusedTailIsZero(t *testing.T) {
	d := parse(t, `sockets: [{id: 0}]`)
	m, err := Build(d, nil)
	require.NoError(t, err)
	require.Len(t, m.Entries, Capacity(d)*Capacity(d))
	for i, e := range m.Entries[m.N*m.N:] {
		if e != 0 {
			t.Fatalf("单元 %d 为 %#x", i+m.N*m.N, e)
		}
	}
}

func TestCapacity(t *testing.T) {
	d := parse(t, `
limits: {maxSockets: 1}
volMemMode: mix
snc: {enabled: true, clusters: 4}
virtualNuma: {enabled: true, clusters: 2}
sockets: [{id: 0}]
`)
	_, err := Build(d, nil)
	assert.Equal(t, acpi.ErrCapacity, errors.Cause(err))
}

const fourSocketFull = `
snc: {enabled: true, clusters: 2}
fpgaPresent: 0x4
sockets:
  - {id: 0, kti: [{peer: 1}, {peer: 2}]}
  - {id: 1, kti: [{peer: 0}, {peer: 3}]}
  - {id: 2, kti: [{peer: 0}]}
  - {id: 3, kti: [{peer: 1}]}
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0x1}
  - {socket: 1, type: 1lm-appdirect, base: 0x400000000, size: 0x100000000}
  - {socket: 3, type: 1lm-appdirect, base: 0x500000000, size: 0x100000000}
  - {socket: 3, type: 1lm-appdirect, base: 0x600000000, size: 0x100000000}
`

func TestMatrixProperties(t *testing.T) {
	for _, y := range []string{fourSocketFull, "volMemMode: mix\n" + fourSocketFull} {
		d := parse(t, y)
		m, err := Build(d, nil)
		require.NoError(t, err)

		for i := 0; i < m.N; i++ {
			for j := 0; j < m.N; j++ {
				// 没有遗留的未填单元
				assert.NotEqual(t, uint8(Unset), m.At(i, j), "(%d,%d)", i, j)
				// 自身距离最小
				assert.LessOrEqual(t, m.At(i, i), m.At(i, j), "(%d,%d)", i, j)
			}
		}
	}

	// 相连插槽之间的距离对称
	d := parse(t, fourSocketFull)
	m, err := Build(d, nil)
	require.NoError(t, err)
	nodes := NodesOf(d)
	ic := d.Interconnect()
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			if ic.Linked(nodes.socketOf(i), nodes.socketOf(j)) {
				assert.Equal(t, m.At(i, j), m.At(j, i), "(%d,%d)", i, j)
			}
		}
	}
}

func TestIsolatedFallback(t *testing.T) {
	d := parse(t, `sockets: [{id: 0}, {id: 1}]`)
	m, err := Build(d, topology.Isolated{})
	require.NoError(t, err)
	assert.Equal(t, [][]uint8{{10, 30}, {30, 10}}, rows(m))
}

func TestMesh(t *testing.T) {
	assert.Equal(t, uint8(10), MeshDistance(1, 1, 4))
	assert.Equal(t, uint8(11), MeshDistance(0, 1, 4))
	assert.Equal(t, uint8(12), MeshDistance(0, 3, 4))
	assert.Equal(t, uint8(20), MeshDistance(0, 4, 4))
	assert.Equal(t, uint8(21), MeshDistance(2, 5, 4))
	assert.Equal(t, uint8(22), MeshDistance(3, 6, 4))

	d := parse(t, `
distanceModel: mesh
mesh: {domainsPerSocket: 2}
sockets: [{id: 0}, {id: 1}]
`)
	m, err := BuildMesh(d)
	require.NoError(t, err)
	assert.Equal(t, [][]uint8{
		{10, 11, 20, 20},
		{11, 10, 20, 20},
		{20, 20, 10, 11},
		{20, 20, 11, 10},
	}, rows(m))
}

func TestEncodeParse(t *testing.T) {
	d := parse(t, fourSocketFull)
	m, err := Build(d, nil)
	require.NoError(t, err)

	tbl, err := New(d.OEM, m)
	require.NoError(t, err)
	assert.Equal(t, uint32(acpi.HeaderSize+8+m.N*m.N), tbl.Header.Length)
	assert.Equal(t, uint64(m.N), tbl.Localities)
	assert.Equal(t, int(m.At(0, m.N-1)), tbl.At(0, m.N-1))

	generic, err := acpi.ParseTable(tbl.Buf())
	require.NoError(t, err)
	assert.IsType(t, &Table{}, generic)
	assert.Contains(t, tbl.String(), "NumberOfSystemLocalities")

	_, err = Parse(tbl.Buf()[:acpi.HeaderSize+4])
	assert.Error(t, err)
}

func TestParseOversizedCount(t *testing.T) {
	tests := []struct {
		name  string
		count uint64
		cells int
	}{
		{name: "all ones", count: ^uint64(0), cells: 1},
		{name: "square wraps to zero", count: 1 << 32, cells: 0},
		{name: "more nodes than cells", count: 3, cells: 4},
		{name: "square exceeds cells", count: 2, cells: 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := acpi.NewWriter(acpi.NewHeader(acpi.SigSLIT, Revision, acpi.OEM{ID: "TEST"}))
			w.Append(tt.count)
			if tt.cells > 0 {
				w.Append(make([]uint8, tt.cells))
			}
			buf, err := w.Finalize()
			require.NoError(t, err)

			var tbl *Table
			assert.NotPanics(t, func() { tbl, err = Parse(buf) })
			assert.Error(t, err)
			assert.Equal(t, acpi.ErrTruncated, errors.Cause(err))
			assert.Nil(t, tbl)
		})
	}
}
