// Package snapcache caches discovery snapshots in two tiers: a TTL-bound
// in-memory tier for read traffic and a revisioned bbolt store that
// survives restarts and feeds the background refresher.
package snapcache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/karttaio/kartta/types"
)

var (
	bucketSnapshots = []byte("snapshots")
	bucketLatest    = []byte("latest")
	bucketMeta      = []byte("meta")
)

// SnapshotMeta is the in-memory index row for one account's latest
// snapshot.
type SnapshotMeta struct {
	AccountRef       string
	Revision         int64
	StoredAt         time.Time
	TotalMonthlyCost float64
	TotalRecords     int
}

// Store is the persistent snapshot tier. Every save gets a new revision;
// old revisions stay on disk until Compact trims them.
type Store struct {
	mu sync.RWMutex

	// In-memory index for fast lookups
	index *btree.BTreeG[*SnapshotMeta]

	// On-disk storage
	db *bbolt.DB

	// Current revision number
	currentRev int64

	dir string
}

// NewStore opens (or creates) the snapshot database under dir.
func NewStore(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "kartta.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketSnapshots, bucketLatest, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{
		index: btree.NewG[*SnapshotMeta](32, func(a, b *SnapshotMeta) bool {
			return a.AccountRef < b.AccountRef
		}),
		db:  db,
		dir: dir,
	}

	store.loadRevision()
	if err := store.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the storage.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a snapshot under a fresh revision and repoints the
// account's latest marker at it, atomically.
func (s *Store) Save(snap *types.Snapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRev++
	rev := s.currentRev

	value, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := makeSnapshotKey(rev, snap.AccountRef)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSnapshots).Put(key, value); err != nil {
			return err
		}
		if err := tx.Bucket(bucketLatest).Put([]byte(snap.AccountRef), key); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte("current_revision"), int64ToBytes(rev))
	})
	if err != nil {
		return 0, err
	}

	s.index.ReplaceOrInsert(&SnapshotMeta{
		AccountRef:       snap.AccountRef,
		Revision:         rev,
		StoredAt:         snap.FinishedAt,
		TotalMonthlyCost: snap.TotalMonthlyCost,
		TotalRecords:     snap.TotalRecords,
	})

	return rev, nil
}

// Latest returns the newest stored snapshot for the account, or nil when
// the account has none.
func (s *Store) Latest(accountRef string) (*types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap *types.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketLatest).Get([]byte(accountRef))
		if key == nil {
			return nil
		}
		value := tx.Bucket(bucketSnapshots).Get(key)
		if value == nil {
			return nil
		}
		snap = &types.Snapshot{}
		return json.Unmarshal(value, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Meta returns the index row for one account.
func (s *Store) Meta(accountRef string) (*SnapshotMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Get(&SnapshotMeta{AccountRef: accountRef})
}

// List returns the index rows for every account with a stored snapshot,
// in account order.
func (s *Store) List() []*SnapshotMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var metas []*SnapshotMeta
	s.index.Ascend(func(meta *SnapshotMeta) bool {
		metas = append(metas, meta)
		return true
	})
	return metas
}

// Delete drops the account's latest marker and index row. Historic
// revisions stay until Compact.
func (s *Store) Delete(accountRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLatest).Delete([]byte(accountRef))
	})
	if err != nil {
		return err
	}
	s.index.Delete(&SnapshotMeta{AccountRef: accountRef})
	return nil
}

// CurrentRevision returns the current revision number.
func (s *Store) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Compact removes snapshot revisions older than the newest keepRevisions.
// Latest markers are never removed.
func (s *Store) Compact(keepRevisions int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.currentRev - keepRevisions
	if cutoff <= 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		latest := tx.Bucket(bucketLatest)
		pinned := make(map[string]struct{})
		if err := latest.ForEach(func(_, key []byte) error {
			pinned[string(key)] = struct{}{}
			return nil
		}); err != nil {
			return err
		}

		bucket := tx.Bucket(bucketSnapshots)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if _, keep := pinned[string(k)]; keep {
				continue
			}
			rev, _ := parseSnapshotKey(k)
			if rev < cutoff {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) loadRevision() {
	s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return nil
		}
		if data := bucket.Get([]byte("current_revision")); data != nil {
			s.currentRev = bytesToInt64(data)
		}
		return nil
	})
}

// rebuildIndex restores the in-memory index from the latest markers.
func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		snapshots := tx.Bucket(bucketSnapshots)
		return tx.Bucket(bucketLatest).ForEach(func(accountRef, key []byte) error {
			value := snapshots.Get(key)
			if value == nil {
				return nil
			}
			var snap types.Snapshot
			if err := json.Unmarshal(value, &snap); err != nil {
				return err
			}
			rev, _ := parseSnapshotKey(key)
			s.index.ReplaceOrInsert(&SnapshotMeta{
				AccountRef:       string(accountRef),
				Revision:         rev,
				StoredAt:         snap.FinishedAt,
				TotalMonthlyCost: snap.TotalMonthlyCost,
				TotalRecords:     snap.TotalRecords,
			})
			return nil
		})
	})
}

func makeSnapshotKey(rev int64, accountRef string) []byte {
	return []byte(fmt.Sprintf("%016d:%s", rev, accountRef))
}

func parseSnapshotKey(key []byte) (int64, string) {
	var rev int64
	var ref string
	fmt.Sscanf(string(key), "%016d:%s", &rev, &ref)
	return rev, ref
}

func int64ToBytes(n int64) []byte {
	return []byte(fmt.Sprintf("%d", n))
}

func bytesToInt64(b []byte) int64 {
	var n int64
	fmt.Sscanf(string(b), "%d", &n)
	return n
}
