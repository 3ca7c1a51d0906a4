package tilestore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/midgard-stitch/pkg/formats"
	"github.com/Faultbox/midgard-stitch/pkg/heightfield"
)

const (
	badgerTilePrefix  = "tile:"
	badgerAssetPrefix = "asset:"
)

// BadgerStore keeps encoded HMT tiles in a BadgerDB keyed by tile ID.
// Tile values are zstd-compressed.
type BadgerStore struct {
	db           *badger.DB
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder

	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens (or creates) a tile database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	return openBadger(opts)
}

// OpenBadgerInMemory opens a database that lives only in memory.
func OpenBadgerInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating tile compressor: %w", err)
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating tile decompressor: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		compressor.Close()
		decompressor.Close()
		return nil, fmt.Errorf("opening badger tile store: %w", err)
	}
	return &BadgerStore{db: db, compressor: compressor, decompressor: decompressor}, nil
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.compressor.Close()
	b.decompressor.Close()
	return b.db.Close()
}

// Put stores a complete tile under id.
func (b *BadgerStore) Put(id ID, g *heightfield.Grid, p Placement) error {
	data, err := b.encode(formats.NewHMT(g, p.Rect, p.Vertical))
	if err != nil {
		return err
	}
	return b.update(func(txn *badger.Txn) error {
		return txn.Set(tileKey(id), data)
	})
}

// PutAsset stores a tile under the ID derived from its asset path and
// remembers the path, so an export can recreate the same file layout.
func (b *BadgerStore) PutAsset(asset string, g *heightfield.Grid, p Placement) (ID, error) {
	asset = normalizeAsset(asset)
	id := IDFromAsset(asset)
	data, err := b.encode(formats.NewHMT(g, p.Rect, p.Vertical))
	if err != nil {
		return "", err
	}
	err = b.update(func(txn *badger.Txn) error {
		if err := txn.Set(tileKey(id), data); err != nil {
			return err
		}
		return txn.Set(assetKey(id), []byte(asset))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Asset returns the asset path recorded by PutAsset.
func (b *BadgerStore) Asset(id ID) (string, bool) {
	var asset string
	err := b.view(func(txn *badger.Txn) error {
		item, err := txn.Get(assetKey(id))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		asset = string(v)
		return err
	})
	if err != nil {
		return "", false
	}
	return asset, true
}

// IDs lists tiles in ascending ID order.
func (b *BadgerStore) IDs() ([]ID, error) {
	var ids []ID
	err := b.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerTilePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, ID(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Badger iterates in key order already; sort anyway to keep the contract explicit.
	return sortIDs(ids), nil
}

// Tile returns the decoded tile record.
func (b *BadgerStore) Tile(id ID) (*formats.HMT, error) {
	var h *formats.HMT
	err := b.view(func(txn *badger.Txn) error {
		var err error
		h, err = b.getTile(txn, id)
		return err
	})
	return h, err
}

// Elevation returns the tile's grid.
func (b *BadgerStore) Elevation(id ID) (*heightfield.Grid, error) {
	h, err := b.Tile(id)
	if err != nil {
		return nil, err
	}
	return h.Grid()
}

// SetElevation replaces the tile's samples in a single transaction.
func (b *BadgerStore) SetElevation(id ID, g *heightfield.Grid) error {
	return b.update(func(txn *badger.Txn) error {
		h, err := b.getTile(txn, id)
		if err != nil {
			return err
		}
		data, err := b.encode(formats.NewHMT(g, h.Bounds(), h.Vertical))
		if err != nil {
			return err
		}
		return txn.Set(tileKey(id), data)
	})
}

// Placement returns the tile's world bounds.
func (b *BadgerStore) Placement(id ID) (Placement, error) {
	h, err := b.Tile(id)
	if err != nil {
		return Placement{}, err
	}
	return Placement{Rect: h.Bounds(), Vertical: h.Vertical}, nil
}

func (b *BadgerStore) view(fn func(txn *badger.Txn) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}
	return b.db.View(fn)
}

func (b *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStoreClosed
	}
	return b.db.Update(fn)
}

func (b *BadgerStore) getTile(txn *badger.Txn, id ID) (*formats.HMT, error) {
	item, err := txn.Get(tileKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading tile %s: %w", id, err)
	}

	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("reading tile %s: %w", id, err)
	}
	raw, err := b.decompressor.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing tile %s: %w", id, err)
	}
	h, err := formats.ParseHMT(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding tile %s: %w", id, err)
	}
	return h, nil
}

func (b *BadgerStore) encode(h *formats.HMT) ([]byte, error) {
	data, err := formats.EncodeHMT(h)
	if err != nil {
		return nil, err
	}
	return b.compressor.EncodeAll(data, nil), nil
}

func tileKey(id ID) []byte {
	return []byte(badgerTilePrefix + string(id))
}

func assetKey(id ID) []byte {
	return []byte(badgerAssetPrefix + string(id))
}
