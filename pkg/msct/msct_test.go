package msct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
	"github.com/tinytoy-sec/NumaTableGen/pkg/topology"
)

func TestBuild(t *testing.T) {
	d, err := topology.Parse([]byte(`
physicalAddressBits: 46
snc: {enabled: true, clusters: 2}
sockets: [{id: 0}, {id: 1}]
`))
	require.NoError(t, err)
	tbl, err := Build(d)
	require.NoError(t, err)

	assert.Equal(t, uint32(ProxDomInfoOffset+ProxDomInfoLength), tbl.Header.Length)
	assert.Equal(t, uint32(4*2-1), tbl.MsctHeader.MaxNumProxDom)
	assert.Equal(t, uint64(1)<<46-1, tbl.MsctHeader.MaxPhysicalAddress)
	require.Len(t, tbl.ProxDom, 1)
	assert.Equal(t, uint32(7), tbl.ProxDom[0].ProxDomRangeHigh)
	assert.Equal(t, uint32(256), tbl.ProxDom[0].MaxProcessorCapacity)
	assert.Equal(t, tbl.MsctHeader.MaxPhysicalAddress, tbl.ProxDom[0].MaxMemoryCapacity)

	generic, err := acpi.ParseTable(tbl.Buf())
	require.NoError(t, err)
	assert.Equal(t, tbl.ProxDom, generic.(*Table).ProxDom)
	assert.Contains(t, tbl.String(), "MaxNumProxDom 7")
}

func TestFullAddressWidth(t *testing.T) {
	d, err := topology.Parse([]byte(`
physicalAddressBits: 64
sockets: [{id: 0}]
`))
	require.NoError(t, err)
	tbl, err := Build(d)
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), tbl.MsctHeader.MaxPhysicalAddress)
	assert.Equal(t, uint32(3), tbl.MsctHeader.MaxNumProxDom)
}

func TestParseBadOffset(t *testing.T) {
	d, err := topology.Parse([]byte(`sockets: [{id: 0}]`))
	require.NoError(t, err)
	tbl, err := Build(d)
	require.NoError(t, err)
	buf := append([]byte(nil), tbl.Buf()...)
	buf[acpi.HeaderSize] = 0x40
	buf[9] = 0
	buf[9] = -acpi.Checksum8(buf)
	_, err = Parse(buf)
	assert.Error(t, err)
}
