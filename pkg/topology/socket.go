package topology

import "math/bits"

// NumSockets 返回在位插槽数
func (d *Descriptor) NumSockets() int {
	return bits.OnesCount32(d.SocketPresent)
}

// SocketPresentAt 判断物理插槽是否在位
func (d *Descriptor) SocketPresentAt(phys int) bool {
	return phys >= 0 && phys < 32 && d.SocketPresent&(1<<uint(phys)) != 0
}

// LogicalSocket 把物理插槽号转换为逻辑序号，即比它小的在位插槽个数
func (d *Descriptor) LogicalSocket(phys int) int {
	if !d.SocketPresentAt(phys) {
		return InvalidSocket
	}
	return bits.OnesCount32(d.SocketPresent & (1<<uint(phys) - 1))
}

// PhysicalSocket 返回第logical个在位插槽的物理号
func (d *Descriptor) PhysicalSocket(logical int) int {
	n := 0
	for phys := 0; phys < d.Limits.MaxSockets; phys++ {
		if !d.SocketPresentAt(phys) {
			continue
		}
		if n == logical {
			return phys
		}
		n++
	}
	return InvalidSocket
}

// PresentSockets 按物理号升序返回在位插槽
func (d *Descriptor) PresentSockets() []int {
	var out []int
	for phys := 0; phys < d.Limits.MaxSockets; phys++ {
		if d.SocketPresentAt(phys) {
			out = append(out, phys)
		}
	}
	return out
}

// FpgaSockets 按插槽号升序返回装有FPGA的插槽
func (d *Descriptor) FpgaSockets() []int {
	var out []int
	for s := 0; s < d.Limits.MaxSockets; s++ {
		if d.FpgaPresent&(1<<uint(s)) != 0 {
			out = append(out, s)
		}
	}
	return out
}

// FirstImc 返回位图中最低位的IMC，位图为空时为0
func FirstImc(bitmap uint8) int {
	if bitmap == 0 {
		return 0
	}
	return bits.TrailingZeros8(bitmap)
}
