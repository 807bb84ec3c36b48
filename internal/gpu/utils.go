package gpu

import (
	"encoding/binary"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

// spirvHeaderSize is the five-word SPIR-V header (magic, version, generator,
// bound, schema).
const spirvHeaderSize = 20

// IsSPIRV reports whether data starts with a SPIR-V header in either byte order.
func IsSPIRV(data []byte) bool {
	if len(data) < spirvHeaderSize || len(data)%4 != 0 {
		return false
	}
	return binary.LittleEndian.Uint32(data) == SPIRVMagic || binary.BigEndian.Uint32(data) == SPIRVMagic
}

// FillFloat32 sets every element of a host-visible buffer to v.
func FillFloat32(buf *Buffer, v float32) error {
	data, err := buf.Float32s()
	if err != nil {
		return err
	}
	for i := range data {
		data[i] = v
	}
	return nil
}

// FillInt32 sets every element of a host-visible buffer to v.
func FillInt32(buf *Buffer, v int32) error {
	data, err := buf.Int32s()
	if err != nil {
		return err
	}
	for i := range data {
		data[i] = v
	}
	return nil
}

// CopyFloat32 returns a Go copy of the float32 contents of a host-visible buffer.
func CopyFloat32(buf *Buffer) ([]float32, error) {
	data, err := buf.Float32s()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// CopyInt32 returns a Go copy of the int32 contents of a host-visible buffer.
func CopyInt32(buf *Buffer) ([]int32, error) {
	data, err := buf.Int32s()
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(data))
	copy(out, data)
	return out, nil
}
