package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/hmat"
	"github.com/tinytoy-sec/NumaTableGen/pkg/slit"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

const linked = `
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}]}
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0x1}
  - {socket: 1, type: 1lm-ddr, base: 0x80000000, size: 0x80000000, imcBitmap: 0x1}
threads:
  - {socket: 0, apicId: 0x0}
  - {socket: 1, apicId: 0x40}
`

func build(t *testing.T, y string) *Set {
	t.Helper()
	d, err := topology.Parse([]byte(y))
	require.NoError(t, err)
	s, err := Build(d)
	require.NoError(t, err)
	return s
}

func TestBuild(t *testing.T) {
	s := build(t, linked)
	assert.Equal(t, []string{acpi.SigSRAT, acpi.SigSLIT, acpi.SigHMAT, acpi.SigMSCT}, s.Signatures())
	assert.Empty(t, s.Failed())
	require.NotNil(t, s.Domains)
	assert.Equal(t, [][]int{{0, 1}, {1, 0}}, s.Hops)

	tbl, ok := s.Lookup(acpi.SigSLIT)
	require.True(t, ok)
	sl := tbl.(*slit.Table)
	assert.Equal(t, [][]int{{10, 20}, {20, 10}}, sl.Distances)

	_, ok = s.Lookup("FACP")
	assert.False(t, ok)
}

// 一张表超出容量不影响其他表
func TestCapacityIsolated(t *testing.T) {
	s := build(t, `
limits: {maxSockets: 1, maxImc: 2, crsEntriesPerNode: 1}
memHotPlug: {enabled: true, tohm: 0x100000000}
sockets: [{id: 0}]
memoryMap:
  - {socket: 0, type: 1lm-ddr, base: 0x0, size: 0x80000000, imcBitmap: 0x1}
`)
	assert.Equal(t, []string{acpi.SigSLIT, acpi.SigHMAT, acpi.SigMSCT}, s.Signatures())
	assert.Equal(t, []string{acpi.SigSRAT}, s.Failed())
	assert.Contains(t, s.Errors[acpi.SigSRAT], "上限")

	h, ok := s.Lookup(acpi.SigHMAT)
	require.True(t, ok)
	assert.Len(t, h.(*hmat.Table).MSARS, 1)
}

func TestSocketHops(t *testing.T) {
	d, err := topology.Parse([]byte(`
sockets:
  - {id: 0, kti: [{peer: 1}]}
  - {id: 1, kti: [{peer: 0}, {peer: 2}]}
  - {id: 2, kti: [{peer: 1}]}
  - {id: 3}
`))
	require.NoError(t, err)
	hops := SocketHops(d)
	assert.Equal(t, []int{0, 1, 2, topology.Unreachable}, hops[0])
	assert.Equal(t, topology.Unreachable, hops[3][1])
}

func TestFromBuffers(t *testing.T) {
	s := build(t, linked)
	bufs := make([][]byte, len(s.Tables))
	for i, tbl := range s.Tables {
		bufs[i] = tbl.Buf()
	}
	// 不认识的签名保留为Raw
	w := acpi.NewWriter(acpi.NewHeader("OEMX", 1, acpi.OEM{ID: "TEST"}))
	w.Append(uint32(0x12345678))
	raw, err := w.Finalize()
	require.NoError(t, err)
	bufs = append(bufs, raw)

	again, err := FromBuffers(bufs)
	require.NoError(t, err)
	assert.Equal(t, append(s.Signatures(), "OEMX"), again.Signatures())
	assert.IsType(t, &acpi.Raw{}, again.Tables[4])
	for i := range s.Tables {
		assert.Equal(t, s.Tables[i].Buf(), again.Tables[i].Buf())
	}

	bufs[0] = bufs[0][:10]
	_, err = FromBuffers(bufs)
	assert.Error(t, err)
}

type counter struct{ sigs []string }

func (c *counter) Run(t acpi.Table) error { return t.Apply(c) }

func (c *counter) Visit(t acpi.Table) error {
	c.sigs = append(c.sigs, t.Signature())
	return t.ApplyChildren(c)
}

func TestApplyChildren(t *testing.T) {
	s := build(t, linked)
	c := &counter{}
	require.NoError(t, c.Run(s))
	assert.Equal(t, append([]string{Signature}, s.Signatures()...), c.sigs)
}

func TestMarshalJSON(t *testing.T) {
	b, err := build(t, linked).MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Signature":"HMAT"`)
	assert.Contains(t, string(b), `"Distances":[[10,20],[20,10]]`)
}
