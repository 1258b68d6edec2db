package block

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// BlockID представляет идентификатор типа блока. 0 зарезервирован за пустотой.
type BlockID uint16

// Константы ID блоков стандартного каталога
const (
	AirBlockID            BlockID = iota // 0 - пустота
	StoneBlockID                         // 1
	DirtBlockID                          // 2
	SandBlockID                          // 3 - падает
	GravelBlockID                        // 4 - падает
	GrassBlockID                         // 5
	CopperOreBlockID                     // 6
	IronOreBlockID                       // 7
	GoldOreBlockID                       // 8
	TorchBlockID                         // 9 - светится, бьётся при падении
	CaveStoneBlockID                     // 10 - камень внутри пещер
	MossyStoneBlockID                    // 11 - болото
	MossyCaveStoneBlockID                // 12 - пещерный вариант болотного камня
	PlanksBlockID                        // 13 - строения
	BrickBlockID                         // 14 - строения
)

// Registry хранит определения блоков по ID.
// Реестр передаётся явно каждой подсистеме, глобального экземпляра нет.
type Registry struct {
	blocks map[BlockID]*Definition
	byName map[string]BlockID
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		blocks: make(map[BlockID]*Definition),
		byName: make(map[string]BlockID),
	}
}

// NewDefaultRegistry создаёт реестр со стандартным каталогом блоков
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range DefaultDefinitions() {
		r.Register(def)
	}
	return r
}

// Register добавляет (или заменяет) определение блока
func (r *Registry) Register(def Definition) {
	if old, ok := r.blocks[def.ID]; ok && old.Name != def.Name {
		delete(r.byName, old.Name)
	}
	d := def
	r.blocks[def.ID] = &d
	if def.Name != "" {
		r.byName[def.Name] = def.ID
	}
}

// Get возвращает определение блока. Указатель нельзя изменять.
func (r *Registry) Get(id BlockID) (*Definition, bool) {
	def, ok := r.blocks[id]
	return def, ok
}

// Has проверяет наличие определения
func (r *Registry) Has(id BlockID) bool {
	_, ok := r.blocks[id]
	return ok
}

// IDByName возвращает ID блока по имени, для неизвестного имени - AirBlockID
func (r *Registry) IDByName(name string) BlockID {
	return r.byName[name]
}

// All возвращает все определения, отсортированные по ID
func (r *Registry) All() []*Definition {
	defs := make([]*Definition, 0, len(r.blocks))
	for _, def := range r.blocks {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Count возвращает число зарегистрированных блоков
func (r *Registry) Count() int {
	return len(r.blocks)
}

// Clear удаляет все определения
func (r *Registry) Clear() {
	r.blocks = make(map[BlockID]*Definition)
	r.byName = make(map[string]BlockID)
}

// Cell создаёт ячейку заданного типа с флагами из определения.
// Для неизвестного ID флаги пустые.
func (r *Registry) Cell(id BlockID) Cell {
	c := Cell{ID: id}
	if def, ok := r.blocks[id]; ok {
		c.Flags = def.CellFlags()
	}
	return c
}

// blockFile описывает YAML файл с дополнительными блоками
type blockFile struct {
	Blocks []Definition `yaml:"blocks"`
}

// LoadYAML читает список определений из YAML и регистрирует их.
// Возвращает число загруженных блоков.
func (r *Registry) LoadYAML(reader io.Reader) (int, error) {
	var file blockFile
	dec := yaml.NewDecoder(reader)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, fmt.Errorf("ошибка разбора каталога блоков: %w", err)
	}

	seen := make(map[BlockID]struct{}, len(file.Blocks))
	for _, def := range file.Blocks {
		if def.Name == "" {
			return 0, fmt.Errorf("блок %d без имени", def.ID)
		}
		if _, dup := seen[def.ID]; dup {
			return 0, fmt.Errorf("повторный ID блока %d (%s)", def.ID, def.Name)
		}
		seen[def.ID] = struct{}{}
	}
	for _, def := range file.Blocks {
		r.Register(def)
	}
	return len(file.Blocks), nil
}

// LoadYAMLFile загружает каталог блоков из файла
func (r *Registry) LoadYAMLFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("не удалось открыть каталог блоков: %w", err)
	}
	defer f.Close()
	return r.LoadYAML(f)
}
