package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/dgraph-io/badger/v3"
)

// ErrStoreClosed операция над закрытым хранилищем
var ErrStoreClosed = errors.New("хранилище закрыто")

const keyPrefix = "chunk:"

// Options параметры хранилища
type Options struct {
	Path     string // каталог данных, база создаётся в <Path>/world
	InMemory bool   // без диска (тесты)
}

// ChunkStore хранилище чанков в BadgerDB. Реализует world.ChunkStore.
type ChunkStore struct {
	db      *badger.DB
	codec   *Codec
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
	log     logging.Lazy
}

var _ world.ChunkStore = (*ChunkStore)(nil)

// Open открывает хранилище
func Open(opts Options) (*ChunkStore, error) {
	var bopts badger.Options
	dbPath := ""
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath = filepath.Join(opts.Path, "world")
		bopts = badger.DefaultOptions(dbPath)
	}
	bopts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	codec, err := NewCodec()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &ChunkStore{
		db:      db,
		codec:   codec,
		dbPath:  dbPath,
		isReady: true,
		log:     logging.NewLazy("storage"),
	}, nil
}

// Close закрывает хранилище
func (s *ChunkStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.codec.Close()
	return s.db.Close()
}

func chunkKey(coords vec.Vec2) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", keyPrefix, coords.X, coords.Y))
}

// SaveChunk сохраняет чанк целиком
func (s *ChunkStore) SaveChunk(chunk *world.Chunk) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}

	data := s.codec.Encode(chunk)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(chunk.Coords), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	s.log.Trace("Чанк %v сохранён (%d байт)", chunk.Coords, len(data))
	return nil
}

// LoadChunk читает чанк; отсутствующий чанк - nil без ошибки
func (s *ChunkStore) LoadChunk(coords vec.Vec2) (*world.Chunk, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(coords))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	chunk, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("чанк %v: %w", coords, err)
	}
	return chunk, nil
}

// DeleteChunk удаляет сохранённый чанк
func (s *ChunkStore) DeleteChunk(coords vec.Vec2) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chunkKey(coords))
	})
}

// Count число сохранённых чанков
func (s *ChunkStore) Count() (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return 0, ErrStoreClosed
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
