package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/annel0/blockguard/internal/logging"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// ErrStoreClosed возвращается при обращении к закрытому хранилищу
var ErrStoreClosed = errors.New("grid store is closed")

const (
	chunkPrefix = "chunk:"
	worldPrefix = "world:"
)

// GridStore хранит миры в BadgerDB чанками 16³: JSON, сжатый zstd
type GridStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	logger  *logging.Logger
}

// ChunkDelta содержит сохранённое содержимое чанка
type ChunkDelta struct {
	Coords vec.Vec3              `json:"coords"`
	Blocks map[string]BlockDelta `json:"blocks"` // Ключ - абсолютные координаты "x:y:z"
}

// BlockDelta представляет сохранённый блок
type BlockDelta struct {
	ID      block.ID               `json:"id"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NewGridStore открывает хранилище в каталоге dataPath
func NewGridStore(dataPath string) (*GridStore, error) {
	dbPath := filepath.Join(dataPath, "worlds")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &GridStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		enc:     enc,
		dec:     dec,
		logger:  logging.GetStorageLogger(),
	}, nil
}

// Close закрывает хранилище
func (s *GridStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func chunkKey(worldName string, c vec.Vec3) []byte {
	return []byte(fmt.Sprintf("%s%s:%d:%d:%d", chunkPrefix, worldName, c.X, c.Y, c.Z))
}

func posKey(p vec.Vec3) string {
	return fmt.Sprintf("%d:%d:%d", p.X, p.Y, p.Z)
}

func parsePosKey(key string) (vec.Vec3, error) {
	var p vec.Vec3
	if _, err := fmt.Sscanf(key, "%d:%d:%d", &p.X, &p.Y, &p.Z); err != nil {
		return p, fmt.Errorf("bad block key %q: %w", key, err)
	}
	return p, nil
}

// SaveGrid сохраняет изменённые чанки мира. При ошибке чанки снова
// помечаются изменёнными и будут сохранены при следующей попытке.
func (s *GridStore) SaveGrid(worldName string, grid *world.MemoryGrid) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return ErrStoreClosed
	}

	chunks := grid.TakeChanges()
	if len(chunks) == 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(worldPrefix+worldName), nil); err != nil {
			return err
		}
		for _, c := range chunks {
			blocks := grid.ChunkBlocks(c)
			if len(blocks) == 0 {
				if err := txn.Delete(chunkKey(worldName, c)); err != nil {
					return err
				}
				continue
			}
			data, err := s.encode(c, blocks)
			if err != nil {
				return err
			}
			if err := txn.Set(chunkKey(worldName, c), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		grid.MarkDirty(chunks...)
		return fmt.Errorf("save world %s: %w", worldName, err)
	}

	s.logger.Debug("world %s: saved %d chunks", worldName, len(chunks))
	return nil
}

func (s *GridStore) encode(c vec.Vec3, blocks map[vec.Vec3]world.Block) ([]byte, error) {
	delta := ChunkDelta{Coords: c, Blocks: make(map[string]BlockDelta, len(blocks))}
	for pos, b := range blocks {
		delta.Blocks[posKey(pos)] = BlockDelta{ID: b.ID, Payload: b.Payload}
	}
	data, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("encode chunk %s: %w", c, err)
	}
	return s.enc.EncodeAll(data, nil), nil
}

func (s *GridStore) decode(data []byte) (*ChunkDelta, error) {
	raw, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk: %w", err)
	}
	var delta ChunkDelta
	if err := json.Unmarshal(raw, &delta); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	return &delta, nil
}

// LoadWorld загружает сохранённый мир. Несохранённый мир возвращается пустым.
func (s *GridStore) LoadWorld(worldName string) (*world.MemoryGrid, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	grid := world.NewMemoryGrid()
	prefix := []byte(chunkPrefix + worldName + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var delta *ChunkDelta
			err := it.Item().Value(func(val []byte) error {
				d, err := s.decode(val)
				delta = d
				return err
			})
			if err != nil {
				return err
			}

			blocks := make(map[vec.Vec3]world.Block, len(delta.Blocks))
			for key, bd := range delta.Blocks {
				pos, err := parsePosKey(key)
				if err != nil {
					s.logger.Warn("world %s chunk %s: %v", worldName, delta.Coords, err)
					continue
				}
				blocks[pos] = world.Block{ID: bd.ID, Payload: bd.Payload}
			}
			grid.LoadChunk(delta.Coords, blocks)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load world %s: %w", worldName, err)
	}
	return grid, nil
}

// Worlds возвращает имена сохранённых миров
func (s *GridStore) Worlds() ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, ErrStoreClosed
	}

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(worldPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), worldPrefix))
		}
		return nil
	})
	return names, err
}

// LoadAll загружает все сохранённые миры в менеджер
func (s *GridStore) LoadAll(m *world.Manager) error {
	names, err := s.Worlds()
	if err != nil {
		return err
	}
	for _, name := range names {
		grid, err := s.LoadWorld(name)
		if err != nil {
			return err
		}
		m.Add(name, grid)
		s.logger.Info("world %s loaded: %d blocks", name, grid.Len())
	}
	return nil
}
