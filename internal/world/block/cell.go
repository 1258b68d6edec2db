package block

import (
	"encoding/binary"
	"fmt"
)

// CellSize размер ячейки в формате хранения
const CellSize = 4

// Flags упакованный набор свойств ячейки (1 байт)
type Flags uint8

const (
	FlagGravity     Flags = 1 << iota // падает без опоры
	FlagLiquid                        // жидкость
	FlagPlatform                      // односторонняя платформа
	FlagBlend                         // автотайлинг
	FlagBackground                    // блок заднего слоя
	FlagDamaged                       // есть запись здоровья
	FlagBlocksLight                   // задерживает свет
	FlagEmitsLight                    // излучает свет
)

// Has проверяет наличие флага
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// With возвращает набор с установленным или снятым флагом
func (f Flags) With(flag Flags, on bool) Flags {
	if on {
		return f | flag
	}
	return f &^ flag
}

// Cell одна клетка сетки: тип, вариант (4 бита), метаданные (4 бита), флаги
type Cell struct {
	ID      BlockID
	Variant uint8
	Meta    uint8
	Flags   Flags
}

// IsEmpty true для пустой клетки
func (c Cell) IsEmpty() bool {
	return c.ID == AirBlockID
}

// Has проверяет флаг ячейки
func (c Cell) Has(flag Flags) bool {
	return c.Flags.Has(flag)
}

// Pack упаковывает ячейку в 32 бита: id | variant<<16 | meta<<20 | flags<<24
func (c Cell) Pack() uint32 {
	return uint32(c.ID) |
		uint32(c.Variant&0x0F)<<16 |
		uint32(c.Meta&0x0F)<<20 |
		uint32(c.Flags)<<24
}

// Unpack восстанавливает ячейку из 32 бит
func Unpack(v uint32) Cell {
	return Cell{
		ID:      BlockID(v & 0xFFFF),
		Variant: uint8(v>>16) & 0x0F,
		Meta:    uint8(v>>20) & 0x0F,
		Flags:   Flags(v >> 24),
	}
}

// AppendBinary дописывает 4 байта ячейки (little-endian)
func (c Cell) AppendBinary(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, c.Pack())
}

// MarshalBinary реализует encoding.BinaryMarshaler
func (c Cell) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(make([]byte, 0, CellSize)), nil
}

// UnmarshalBinary реализует encoding.BinaryUnmarshaler
func (c *Cell) UnmarshalBinary(data []byte) error {
	if len(data) < CellSize {
		return fmt.Errorf("ячейка: ожидалось %d байта, получено %d", CellSize, len(data))
	}
	*c = Unpack(binary.LittleEndian.Uint32(data))
	return nil
}
