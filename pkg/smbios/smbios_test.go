package smbios

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytoy-sec/NumaTableGen/pkg/acpi"
)

var layout = Layout{MaxImc: 2, ChannelsPerImc: 2, DimmsPerChannel: 1}

// 2个插槽 x 2个IMC x 2个DIMM
func devices() List {
	l := List{}
	for i := 0; i < 8; i++ {
		l = append(l, Type17{Handle: uint16(0x1100 + i), CacheDram: i%2 == 0, DeviceSet: uint8(i / 4)})
	}
	return l
}

func TestSelectByImc(t *testing.T) {
	tests := []struct {
		name   string
		socket int
		bitmap uint8
		want   []uint16
	}{
		{name: "socket0 imc0", socket: 0, bitmap: 0x1, want: []uint16{0x1100}},
		{name: "socket0 both", socket: 0, bitmap: 0x3, want: []uint16{0x1100, 0x1102}},
		{name: "socket1 imc1", socket: 1, bitmap: 0x2, want: []uint16{0x1106}},
		{name: "no imc", socket: 1, bitmap: 0, want: []uint16{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SelectByImc(devices(), layout, tt.socket, tt.bitmap))
		})
	}
}

func TestHalfWidthShiftsImcBoundary(t *testing.T) {
	l := layout
	l.HalfWidth = true
	assert.Equal(t, 1, l.DimmsPerImc())
	// 每个IMC一条记录，0x1102落在socket1的imc0
	assert.Equal(t, []uint16{0x1102}, SelectByImc(devices(), l, 1, 0x1))
}

func TestSelectByDeviceSetCaps(t *testing.T) {
	l := Layout{MaxImc: 1, ChannelsPerImc: 1, DimmsPerChannel: 1}
	assert.Equal(t, []uint16{0x1104}, SelectByDeviceSet(devices(), l, 1))
	assert.Equal(t, []uint16{0x1100, 0x1102}, SelectByDeviceSet(devices(), layout, 0))
}

func TestNilListUnavailable(t *testing.T) {
	var l List
	_, err := l.MemoryDevices()
	assert.Equal(t, acpi.ErrUnavailable, errors.Cause(err))

	devs, err := devices().MemoryDevices()
	require.NoError(t, err)
	assert.Len(t, devs, 8)
}
