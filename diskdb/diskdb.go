// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package diskdb is an on-disk key-value store for off-chain tooling. It
// exposes the same method shapes as the luxfi/database in-memory store so the
// proof store and the consumed-authorization set run on either.
package diskdb

import (
	"errors"
	"fmt"
	"slices"

	"github.com/luxfi/database"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Database is a LevelDB directory.
type Database struct {
	db *leveldb.DB
}

// Open opens or creates the database at dir.
func Open(dir string) (*Database, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("diskdb: open %s: %w", dir, err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

// Get returns database.ErrNotFound for missing keys.
func (d *Database) Get(key []byte) ([]byte, error) {
	value, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	return value, err
}

func (d *Database) Put(key, value []byte) error {
	return d.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, &opt.WriteOptions{Sync: true})
}

// NewIteratorWithPrefix walks the keys starting with prefix in byte order.
func (d *Database) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return &prefixIterator{it: d.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (d *Database) Close() error {
	return d.db.Close()
}

// prefixIterator hands out copies; LevelDB reuses its buffers on Next.
type prefixIterator struct {
	it iterator.Iterator
}

func (p *prefixIterator) Next() bool {
	return p.it.Next()
}

func (p *prefixIterator) Error() error {
	return p.it.Error()
}

func (p *prefixIterator) Key() []byte {
	return slices.Clone(p.it.Key())
}

func (p *prefixIterator) Value() []byte {
	return slices.Clone(p.it.Value())
}

func (p *prefixIterator) Release() {
	p.it.Release()
}
