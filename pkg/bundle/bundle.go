// Package bundle 把生成的一组表写成单个文件，可选LZMA或XZ压缩
//
// 文件格式：
//
//	Header (28字节)
//	负载 (按Header.Compression压缩)
//	  每项: entryHeader, UCS-2名字(带空终止符), 数据
package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"

	"github.com/tinytoy-sec/NumaTableGen/pkg/compression"
	"github.com/tinytoy-sec/NumaTableGen/pkg/guid"
	"github.com/tinytoy-sec/NumaTableGen/pkg/log"
	"github.com/tinytoy-sec/NumaTableGen/pkg/unicode"
)

// 文件标识
const (
	Magic   = "NTBL"
	Version = 1
)

// HeaderSize 是文件头的字节数
const HeaderSize = 28

// Header 是文件头
type Header struct {
	Magic       [4]byte
	Version     uint16
	Count       uint16
	Compression guid.GUID
	// PayloadLength 是文件头之后(压缩后)的字节数
	PayloadLength uint32
}

type entryHeader struct {
	NameLength uint16
	Reserved   uint16
	Length     uint32
	Digest     uint64
}

// Entry 是集合中的一张表
type Entry struct {
	Name   string
	Digest uint64
	Data   []byte
}

// NewEntry 计算数据的摘要
func NewEntry(name string, data []byte) Entry {
	return Entry{Name: name, Digest: xxhash.Sum64(data), Data: data}
}

// Write 写出全部项，compress为全零GUID时不压缩
func Write(w io.Writer, entries []Entry, compress guid.GUID) error {
	if len(entries) > 0xFFFF {
		return fmt.Errorf("项数 %d 太多", len(entries))
	}
	var payload bytes.Buffer
	for _, e := range entries {
		name := unicode.UTF8ToUCS2(e.Name)
		eh := entryHeader{
			NameLength: uint16(len(name)),
			Length:     uint32(len(e.Data)),
			Digest:     xxhash.Sum64(e.Data),
		}
		if err := binary.Write(&payload, binary.LittleEndian, &eh); err != nil {
			return err
		}
		payload.Write(name)
		payload.Write(e.Data)
	}

	data := payload.Bytes()
	if !compress.IsZero() {
		c := compression.CompressorFromGUID(&compress)
		if c == nil {
			return fmt.Errorf("未知的压缩GUID %v", compress)
		}
		var err error
		if data, err = c.Encode(data); err != nil {
			return errors.Wrapf(err, "%s压缩失败", c.Name())
		}
		log.Debugf("集合负载 %d 字节，%s压缩后 %d 字节", payload.Len(), c.Name(), len(data))
	}

	h := Header{
		Version:       Version,
		Count:         uint16(len(entries)),
		Compression:   compress,
		PayloadLength: uint32(len(data)),
	}
	copy(h.Magic[:], Magic)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// Read 解析集合文件并校验每项的摘要
func Read(buf []byte) (*Header, []Entry, error) {
	if len(buf) < HeaderSize {
		return nil, nil, fmt.Errorf("集合文件只有 %d 字节", len(buf))
	}
	h := &Header{}
	if err := binary.Read(bytes.NewReader(buf[:HeaderSize]), binary.LittleEndian, h); err != nil {
		return nil, nil, err
	}
	if string(h.Magic[:]) != Magic {
		return nil, nil, fmt.Errorf("标识 %q 不是 %q", h.Magic[:], Magic)
	}
	if h.Version != Version {
		return nil, nil, fmt.Errorf("不支持的集合版本 %d", h.Version)
	}
	data := buf[HeaderSize:]
	if int(h.PayloadLength) != len(data) {
		return nil, nil, fmt.Errorf("负载长度 %d，文件中有 %d 字节", h.PayloadLength, len(data))
	}
	if !h.Compression.IsZero() {
		c := compression.CompressorFromGUID(&h.Compression)
		if c == nil {
			return nil, nil, fmt.Errorf("未知的压缩GUID %v", h.Compression)
		}
		var err error
		if data, err = c.Decode(data); err != nil {
			return nil, nil, errors.Wrapf(err, "%s解压失败", c.Name())
		}
	}

	r := bytes.NewReader(data)
	entries := make([]Entry, 0, h.Count)
	for i := 0; i < int(h.Count); i++ {
		var eh entryHeader
		if err := binary.Read(r, binary.LittleEndian, &eh); err != nil {
			return nil, nil, errors.Wrapf(err, "第 %d 项", i)
		}
		if int(eh.NameLength)+int(eh.Length) > r.Len() {
			return nil, nil, fmt.Errorf("第 %d 项长度 %d 超出剩余的 %d 字节", i, eh.Length, r.Len())
		}
		name := make([]byte, eh.NameLength)
		d := make([]byte, eh.Length)
		// r.Len()已经检查过，Read不会读不满
		_, _ = r.Read(name)
		_, _ = r.Read(d)
		if sum := xxhash.Sum64(d); sum != eh.Digest {
			return nil, nil, fmt.Errorf("第 %d 项摘要 %#x，计算得到 %#x", i, eh.Digest, sum)
		}
		entries = append(entries, Entry{Name: unicode.UCS2ToUTF8(name), Digest: eh.Digest, Data: d})
	}
	if r.Len() != 0 {
		log.Warnf("集合末尾有 %d 字节未使用", r.Len())
	}
	return h, entries, nil
}
