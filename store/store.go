// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package store persists registry snapshots in a local leveldb instance.
// Snapshots are stamped with their head block; a bounded number of them is
// retained so a corrupted latest snapshot never strands the node. State
// above the newest snapshot is recovered by re-syncing the chain.
package store

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vigilprotocol/vigil/vigil"
)

var (
	// ErrNoSnapshot is returned when the store holds no snapshot yet.
	ErrNoSnapshot = errors.New("no snapshot")

	// ErrGenesisMismatch is returned when the data directory was initialized
	// with a different genesis configuration.
	ErrGenesisMismatch = errors.New("genesis mismatch")
)

var (
	genesisKey = []byte("m:genesis")
	snapPrefix = []byte("s:")
)

var (
	writeOpt = opt.WriteOptions{}
	readOpt  = opt.ReadOptions{}
)

// Options tunes the underlying leveldb instance.
type Options struct {
	CacheSize              int
	OpenFilesCacheCapacity int

	// Keep is the number of snapshots retained; values below 1 mean 1.
	Keep int
}

// Store is a snapshot store over leveldb.
type Store struct {
	db   *leveldb.DB
	keep int
}

// Open creates or opens a persistent store at path.
func Open(path string, opts Options) (*Store, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	return open(stg, opts)
}

// OpenMem creates an in-memory store, handy for tests and one-off runs.
func OpenMem(opts Options) (*Store, error) {
	return open(storage.NewMemStorage(), opts)
}

func open(stg storage.Storage, opts Options) (*Store, error) {
	cacheSize := opts.CacheSize
	if cacheSize < 16 {
		cacheSize = 16
	}
	openFilesCacheCapacity := opts.OpenFilesCacheCapacity
	if openFilesCacheCapacity < 16 {
		openFilesCacheCapacity = 16
	}
	keep := opts.Keep
	if keep < 1 {
		keep = 1
	}

	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: openFilesCacheCapacity,
		BlockCacheCapacity:     cacheSize / 2 * opt.MiB,
		WriteBuffer:            cacheSize / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open leveldb")
	}
	return &Store{db: db, keep: keep}, nil
}

// Close closes the store. Later operations will all fail.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckGenesis records the genesis ID on first use and rejects reuse of the
// data directory under a different genesis afterwards.
func (s *Store) CheckGenesis(id vigil.Bytes32) error {
	stored, err := s.db.Get(genesisKey, &readOpt)
	if err == leveldb.ErrNotFound {
		return errors.Wrap(s.db.Put(genesisKey, id.Bytes(), &writeOpt), "record genesis")
	}
	if err != nil {
		return errors.Wrap(err, "read genesis")
	}
	if vigil.BytesToBytes32(stored) != id {
		return errors.WithMessagef(ErrGenesisMismatch, "stored %v, configured %v",
			vigil.BytesToBytes32(stored), id)
	}
	return nil
}

func snapKey(head uint64) []byte {
	key := make([]byte, 0, len(snapPrefix)+8)
	key = append(key, snapPrefix...)
	return binary.BigEndian.AppendUint64(key, head)
}

// snapshotEnvelope peels the head block off a snapshot without decoding the
// rest of it.
type snapshotEnvelope struct {
	Head uint64
	Rest []rlp.RawValue `rlp:"tail"`
}

// SaveSnapshot stores a registry snapshot under its own head block and
// prunes snapshots beyond the retention count in the same batch.
func (s *Store) SaveSnapshot(data []byte) error {
	var env snapshotEnvelope
	if err := rlp.DecodeBytes(data, &env); err != nil {
		return errors.Wrap(err, "snapshot envelope")
	}

	batch := new(leveldb.Batch)
	batch.Put(snapKey(env.Head), data)

	heads, err := s.SnapshotHeads()
	if err != nil {
		return err
	}
	found := false
	for _, h := range heads {
		if h == env.Head {
			found = true
			break
		}
	}
	if !found {
		heads = append(heads, env.Head)
		for i := len(heads) - 1; i > 0 && heads[i] < heads[i-1]; i-- {
			heads[i], heads[i-1] = heads[i-1], heads[i]
		}
	}
	for i := 0; i+s.keep < len(heads); i++ {
		batch.Delete(snapKey(heads[i]))
	}
	return errors.Wrap(s.db.Write(batch, &writeOpt), "write snapshot")
}

// LatestSnapshot returns the newest snapshot and its head block, or
// ErrNoSnapshot.
func (s *Store) LatestSnapshot() (uint64, []byte, error) {
	iter := s.db.NewIterator(util.BytesPrefix(snapPrefix), &readOpt)
	defer iter.Release()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return 0, nil, errors.Wrap(err, "latest snapshot")
		}
		return 0, nil, ErrNoSnapshot
	}
	head := binary.BigEndian.Uint64(iter.Key()[len(snapPrefix):])
	data := make([]byte, len(iter.Value()))
	copy(data, iter.Value())
	return head, data, nil
}

// Snapshot returns the snapshot stamped with the given head block.
func (s *Store) Snapshot(head uint64) ([]byte, error) {
	data, err := s.db.Get(snapKey(head), &readOpt)
	if err == leveldb.ErrNotFound {
		return nil, errors.WithMessagef(ErrNoSnapshot, "head %d", head)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	return data, nil
}

// SnapshotHeads lists the head blocks of all retained snapshots in
// ascending order.
func (s *Store) SnapshotHeads() ([]uint64, error) {
	iter := s.db.NewIterator(util.BytesPrefix(snapPrefix), &readOpt)
	defer iter.Release()

	var heads []uint64
	for iter.Next() {
		heads = append(heads, binary.BigEndian.Uint64(iter.Key()[len(snapPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}
	return heads, nil
}
