package world

import (
	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/metrics"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world/block"
)

// ChunkStore внешнее хранилище чанков.
// LoadChunk возвращает nil, nil если чанк не сохранялся.
type ChunkStore interface {
	LoadChunk(coords vec.Vec2) (*Chunk, error)
	SaveChunk(chunk *Chunk) error
}

// ManagerOptions параметры стриминга
type ManagerOptions struct {
	ViewHalfWidth  int // H: полуширина окна загрузки в чанках
	ViewHalfHeight int // V: полувысота окна загрузки в чанках
	UnloadMargin   int // гистерезис выгрузки

	Store   ChunkStore          // опционально
	Metrics *metrics.Collectors // опционально
}

// DefaultManagerOptions H=8, V=6, запас 2 чанка
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{ViewHalfWidth: 8, ViewHalfHeight: 6, UnloadMargin: 2}
}

// Manager владеет всеми загруженными чанками.
//
// Указатели *Chunk, которые возвращают Chunk и LoadChunk, действительны
// только до следующего структурного изменения (LoadChunk, UnloadChunk,
// UpdateActiveChunks, ClearAll): выгруженный чанк менеджер больше не трогает.
type Manager struct {
	opts ManagerOptions

	chunks          map[vec.Vec2]*Chunk
	generationQueue []vec.Vec2

	lastViewerChunk vec.Vec2
	hasViewer       bool

	log logging.Lazy
}

// NewManager создаёт менеджер чанков
func NewManager(opts ManagerOptions) *Manager {
	def := DefaultManagerOptions()
	if opts.ViewHalfWidth <= 0 {
		opts.ViewHalfWidth = def.ViewHalfWidth
	}
	if opts.ViewHalfHeight <= 0 {
		opts.ViewHalfHeight = def.ViewHalfHeight
	}
	if opts.UnloadMargin < 0 {
		opts.UnloadMargin = def.UnloadMargin
	}
	return &Manager{
		opts:   opts,
		chunks: make(map[vec.Vec2]*Chunk),
		log:    logging.NewLazy("world"),
	}
}

// Options возвращает параметры менеджера
func (m *Manager) Options() ManagerOptions {
	return m.opts
}

// Chunk возвращает загруженный чанк или nil
func (m *Manager) Chunk(coords vec.Vec2) *Chunk {
	coords = WrapChunk(coords)
	if !ValidChunkY(coords.Y) {
		return nil
	}
	return m.chunks[coords]
}

// HasChunk проверяет, загружен ли чанк
func (m *Manager) HasChunk(coords vec.Vec2) bool {
	return m.Chunk(coords) != nil
}

// LoadChunk возвращает чанк, загружая его при необходимости.
// Сначала пробует хранилище, иначе создаёт пустой чанк и ставит его в очередь генерации.
// Вне мира по Y возвращает nil.
func (m *Manager) LoadChunk(coords vec.Vec2) *Chunk {
	coords = WrapChunk(coords)
	if !ValidChunkY(coords.Y) {
		return nil
	}
	if c, ok := m.chunks[coords]; ok {
		return c
	}

	if m.opts.Store != nil {
		stored, err := m.opts.Store.LoadChunk(coords)
		if err != nil {
			m.log.Error("Ошибка загрузки чанка %v: %v", coords, err)
			m.opts.Metrics.StoreError("load")
		} else if stored != nil {
			stored.Coords = coords
			stored.ChangeCounter = 0
			m.chunks[coords] = stored
			m.opts.Metrics.ChunkLoaded("store", len(m.chunks))
			m.log.Debug("Чанк %v восстановлен из хранилища", coords)
			return stored
		}
	}

	c := NewChunk(coords)
	m.chunks[coords] = c
	m.generationQueue = append(m.generationQueue, coords)
	m.opts.Metrics.ChunkLoaded("new", len(m.chunks))
	return c
}

// UnloadChunk выгружает чанк, сохраняя изменённый чанк в хранилище
func (m *Manager) UnloadChunk(coords vec.Vec2) {
	coords = WrapChunk(coords)
	c, ok := m.chunks[coords]
	if !ok {
		return
	}
	m.persist(c)
	delete(m.chunks, coords)
	m.opts.Metrics.ChunkEvicted(len(m.chunks))
}

func (m *Manager) persist(c *Chunk) {
	if m.opts.Store == nil || c.ChangeCounter == 0 {
		return
	}
	if err := m.opts.Store.SaveChunk(c); err != nil {
		m.log.Error("Ошибка сохранения чанка %v: %v", c.Coords, err)
		m.opts.Metrics.StoreError("save")
		return
	}
	c.ChangeCounter = 0
}

// SaveAll сохраняет все изменённые чанки, не выгружая их
func (m *Manager) SaveAll() {
	for _, c := range m.chunks {
		m.persist(c)
	}
}

// UpdateActiveChunks подгружает окно чанков вокруг наблюдателя (позиция в пикселях)
// и выгружает чанки дальше окна плюс запас гистерезиса.
// Повторный вызов внутри того же чанка ничего не делает.
func (m *Manager) UpdateActiveChunks(viewer vec.Vec2Float) {
	center := WrapChunk(TileToChunk(WorldToTile(viewer)))
	if m.hasViewer && center == m.lastViewerChunk {
		return
	}
	m.hasViewer = true
	m.lastViewerChunk = center

	h, v := m.opts.ViewHalfWidth, m.opts.ViewHalfHeight
	minY := max(0, center.Y-v)
	maxY := min(ChunksVertical-1, center.Y+v)
	for cx := center.X - h; cx <= center.X+h; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			m.LoadChunk(vec.Vec2{X: cx, Y: cy})
		}
	}

	m.unloadDistant(center)
}

func (m *Manager) unloadDistant(center vec.Vec2) {
	limitX := m.opts.ViewHalfWidth + m.opts.UnloadMargin
	limitY := m.opts.ViewHalfHeight + m.opts.UnloadMargin

	var far []vec.Vec2
	for coords := range m.chunks {
		dx := WrappedDelta(coords.X, center.X, ChunksHorizontal)
		dy := coords.Y - center.Y
		if dy < 0 {
			dy = -dy
		}
		if dx > limitX || dy > limitY {
			far = append(far, coords)
		}
	}
	for _, coords := range far {
		m.UnloadChunk(coords)
	}
	if len(far) > 0 {
		m.log.Debug("Выгружено %d чанков, загружено %d", len(far), len(m.chunks))
	}
}

// locate возвращает замкнутый тайл, его чанк и локальную позицию.
// load=true создаёт отсутствующий чанк.
func (m *Manager) locate(tile vec.Vec2, load bool) (*Chunk, vec.Vec2) {
	tile = WrapTile(tile)
	if !ValidY(tile.Y) {
		return nil, vec.Vec2{}
	}
	coords := TileToChunk(tile)
	var c *Chunk
	if load {
		c = m.LoadChunk(coords)
	} else {
		c = m.chunks[coords]
	}
	return c, TileToLocal(tile)
}

// Get читает клетку. Отсутствующий чанк или Y вне мира - false.
func (m *Manager) Get(tile vec.Vec2, layer Layer) (block.Cell, bool) {
	c, local := m.locate(tile, false)
	if c == nil {
		return block.Cell{}, false
	}
	return c.Cell(local, layer)
}

// Set пишет клетку, подгружая чанк при необходимости. Y вне мира игнорируется.
func (m *Manager) Set(tile vec.Vec2, layer Layer, cell block.Cell) {
	if c, local := m.locate(tile, true); c != nil {
		c.SetCell(local, layer, cell)
	}
}

// Health возвращает запись здоровья тайла, если он повреждён
func (m *Manager) Health(tile vec.Vec2, layer Layer) (Health, bool) {
	c, local := m.locate(tile, false)
	if c == nil {
		return Health{}, false
	}
	return c.Health(local, layer)
}

// SetHealth сохраняет здоровье; current >= max удаляет запись
func (m *Manager) SetHealth(tile vec.Vec2, layer Layer, current, max float64) {
	if c, local := m.locate(tile, true); c != nil {
		c.SetHealth(local, layer, current, max)
	}
}

// Liquid читает жидкость в тайле
func (m *Manager) Liquid(tile vec.Vec2) (LiquidCell, bool) {
	c, local := m.locate(tile, false)
	if c == nil {
		return LiquidCell{}, false
	}
	return c.Liquid(local)
}

// SetLiquid пишет жидкость
func (m *Manager) SetLiquid(tile vec.Vec2, t LiquidType, level float32) {
	if c, local := m.locate(tile, true); c != nil {
		c.SetLiquid(local, t, level)
	}
}

// Light читает освещённость тайла
func (m *Manager) Light(tile vec.Vec2) uint8 {
	c, local := m.locate(tile, false)
	if c == nil {
		return 0
	}
	return c.Light(local)
}

// SetLight пишет освещённость тайла
func (m *Manager) SetLight(tile vec.Vec2, level uint8) {
	if c, local := m.locate(tile, true); c != nil {
		c.SetLight(local, level)
	}
}

// GenerationQueue копия очереди чанков, ожидающих генерации
func (m *Manager) GenerationQueue() []vec.Vec2 {
	out := make([]vec.Vec2, len(m.generationQueue))
	copy(out, m.generationQueue)
	return out
}

// DrainGenerationQueue забирает и очищает очередь генерации
func (m *Manager) DrainGenerationQueue() []vec.Vec2 {
	q := m.generationQueue
	m.generationQueue = nil
	return q
}

// ForEachChunk обходит загруженные чанки. Загружать и выгружать чанки из fn нельзя.
func (m *Manager) ForEachChunk(fn func(c *Chunk)) {
	for _, c := range m.chunks {
		fn(c)
	}
}

// LoadedCount число загруженных чанков
func (m *Manager) LoadedCount() int {
	return len(m.chunks)
}

// TotalMemoryUsage суммарная оценка памяти загруженных чанков
func (m *Manager) TotalMemoryUsage() int {
	total := 0
	for _, c := range m.chunks {
		total += c.MemoryUsage()
	}
	return total
}

// ClearAll выгружает всё без сохранения и сбрасывает запомненную позицию наблюдателя
func (m *Manager) ClearAll() {
	m.chunks = make(map[vec.Vec2]*Chunk)
	m.generationQueue = nil
	m.hasViewer = false
	m.opts.Metrics.ChunksLoaded(0)
}
