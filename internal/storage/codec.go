package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/klauspost/compress/zstd"
)

// Формат блоба чанка (до сжатия, little endian):
//
//	magic "T2DC", версия u8, флаги u8 (bit0 - сгенерирован)
//	x i32, y i32
//	передний слой: 1024 ячейки по 4 байта
//	задний слой:   1024 ячейки по 4 байта
//	освещение:     1024 байта
//	здоровье: u16 n, затем n * (u16 layer<<10|index, f64 current, f64 max)
//	жидкости: u16 n, затем n * (u16 index, u8 тип, f32 уровень)
const (
	codecVersion  = 1
	flagGenerated = 1 << 0
)

var magic = [4]byte{'T', '2', 'D', 'C'}

// ErrCorrupt повреждённый или чужой блоб
var ErrCorrupt = errors.New("повреждённые данные чанка")

// Codec кодирует чанки в сжатые zstd блобы
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCodec создаёт кодек. Кодировщик и декодировщик переиспользуются
// и безопасны для конкурентных EncodeAll/DecodeAll.
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Close освобождает ресурсы zstd
func (c *Codec) Close() {
	c.dec.Close()
	_ = c.enc.Close()
}

// Encode сериализует и сжимает чанк
func (c *Codec) Encode(ch *world.Chunk) []byte {
	raw := MarshalChunk(ch)
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
}

// Decode распаковывает и восстанавливает чанк
func (c *Codec) Decode(data []byte) (*world.Chunk, error) {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return UnmarshalChunk(raw)
}

// MarshalChunk сериализует чанк без сжатия
func MarshalChunk(ch *world.Chunk) []byte {
	size := 4 + 2 + 8 + 2*world.ChunkArea*block.CellSize + world.ChunkArea + 2 + 2
	size += ch.HealthCount()*18 + ch.LiquidCount()*7
	b := make([]byte, 0, size)

	b = append(b, magic[:]...)
	var flags byte
	if ch.Generated {
		flags |= flagGenerated
	}
	b = append(b, codecVersion, flags)
	b = binary.LittleEndian.AppendUint32(b, uint32(int32(ch.Coords.X)))
	b = binary.LittleEndian.AppendUint32(b, uint32(int32(ch.Coords.Y)))

	for i := range ch.Foreground {
		b = ch.Foreground[i].AppendBinary(b)
	}
	for i := range ch.Background {
		b = ch.Background[i].AppendBinary(b)
	}
	b = append(b, ch.Lighting[:]...)

	b = binary.LittleEndian.AppendUint16(b, uint16(ch.HealthCount()))
	ch.ForEachHealth(func(local vec.Vec2, layer world.Layer, h world.Health) {
		idx := uint16(layer)<<10 | uint16(local.X*world.ChunkSize+local.Y)
		b = binary.LittleEndian.AppendUint16(b, idx)
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(h.Current))
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(h.Max))
	})

	b = binary.LittleEndian.AppendUint16(b, uint16(ch.LiquidCount()))
	ch.ForEachLiquid(func(local vec.Vec2, l world.LiquidCell) {
		b = binary.LittleEndian.AppendUint16(b, uint16(local.X*world.ChunkSize+local.Y))
		b = append(b, byte(l.Type))
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(l.Level))
	})
	return b
}

// reader последовательное чтение с проверкой длины
type reader struct {
	b   []byte
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = ErrCorrupt
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u8() byte {
	if v := r.next(1); v != nil {
		return v[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if v := r.next(2); v != nil {
		return binary.LittleEndian.Uint16(v)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if v := r.next(4); v != nil {
		return binary.LittleEndian.Uint32(v)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if v := r.next(8); v != nil {
		return binary.LittleEndian.Uint64(v)
	}
	return 0
}

// UnmarshalChunk восстанавливает чанк. Флаг Damaged выводится из записей здоровья.
func UnmarshalChunk(data []byte) (*world.Chunk, error) {
	r := &reader{b: data}
	if m := r.next(4); m == nil || [4]byte(m) != magic {
		return nil, ErrCorrupt
	}
	if v := r.u8(); v != codecVersion {
		return nil, fmt.Errorf("%w: версия %d", ErrCorrupt, v)
	}
	flags := r.u8()
	x := int(int32(r.u32()))
	y := int(int32(r.u32()))
	ch := world.NewChunk(vec.Vec2{X: x, Y: y})
	ch.Generated = flags&flagGenerated != 0

	for _, grid := range []*[world.ChunkArea]block.Cell{&ch.Foreground, &ch.Background} {
		for i := range grid {
			var cell block.Cell
			if err := cell.UnmarshalBinary(r.next(block.CellSize)); err != nil {
				return nil, ErrCorrupt
			}
			cell.Flags = cell.Flags.With(block.FlagDamaged, false)
			grid[i] = cell
		}
	}
	copy(ch.Lighting[:], r.next(world.ChunkArea))

	n := int(r.u16())
	for i := 0; i < n && r.err == nil; i++ {
		idx := r.u16()
		current := math.Float64frombits(r.u64())
		maxHealth := math.Float64frombits(r.u64())
		layer := world.Layer(idx >> 10)
		if layer >= world.LayerCount {
			return nil, fmt.Errorf("%w: слой %d", ErrCorrupt, layer)
		}
		pos := int(idx & 0x3FF)
		local := vec.Vec2{X: pos / world.ChunkSize, Y: pos % world.ChunkSize}
		ch.SetHealth(local, layer, current, maxHealth)
	}

	n = int(r.u16())
	for i := 0; i < n && r.err == nil; i++ {
		pos := int(r.u16())
		t := world.LiquidType(r.u8())
		level := math.Float32frombits(r.u32())
		ch.SetLiquid(vec.Vec2{X: pos / world.ChunkSize, Y: pos % world.ChunkSize}, t, level)
	}
	if r.err != nil {
		return nil, r.err
	}
	ch.ChangeCounter = 0
	return ch, nil
}
