package objstore

type Stats struct {
	Entities int
	Types    int

	EntitySize  int64
	EntityAlloc int64
	TypeSize    int64

	// DiskSize is the backend's reported size, 0 if it does not report one.
	DiskSize int64

	IdentityCached int
	Reads          uint64
	Writes         uint64
}

func (s *Stats) TotalSize() int64 {
	return s.EntitySize + s.TypeSize
}

func (db *DB) Stats() (Stats, error) {
	if err := db.lock(); err != nil {
		return Stats{}, err
	}
	defer db.unlock()
	return db.stats()
}

func (db *DB) stats() (Stats, error) {
	es, err := db.entities.stats()
	if err != nil {
		return Stats{}, err
	}
	ts, err := db.types.pointers.stats()
	if err != nil {
		return Stats{}, err
	}
	var diskSize int64
	err = view(db.st, func(tx storageTx) error {
		diskSize = tx.Size()
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Entities:       es.KeyN,
		Types:          ts.KeyN,
		EntitySize:     es.LeafInuse,
		EntityAlloc:    es.TotalAlloc(),
		TypeSize:       ts.LeafInuse,
		DiskSize:       diskSize,
		IdentityCached: db.ident.len(),
		Reads:          db.ReadCount.Load(),
		Writes:         db.WriteCount.Load(),
	}, nil
}
