package longterm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/memguild/memguild/core"
)

// recordIndex is the authoritative in-process view of stored records:
// it enforces hash uniqueness per tenant, serves point reads and quota
// counts, and enumerates candidates for the retention sweep. Vector
// backends only ever see (id, embedding, content); everything else
// lives here.
type recordIndex struct {
	mu      sync.RWMutex
	tenants map[string]*tenantRecords
}

type tenantRecords struct {
	byID   map[string]*core.MemoryRecord
	byHash map[string]string
}

func newRecordIndex() *recordIndex {
	return &recordIndex{tenants: make(map[string]*tenantRecords)}
}

func (ix *recordIndex) tenant(tenantID string) *tenantRecords {
	t, ok := ix.tenants[tenantID]
	if !ok {
		t = &tenantRecords{
			byID:   make(map[string]*core.MemoryRecord),
			byHash: make(map[string]string),
		}
		ix.tenants[tenantID] = t
	}
	return t
}

// insert adds rec unless its content hash is already present, in which
// case the existing id is returned. The dedup check, the quota check
// against max and the write are one critical section: two concurrent
// identical inserts cannot both succeed, and concurrent distinct
// inserts cannot overshoot the cap.
func (ix *recordIndex) insert(rec *core.MemoryRecord, max int) (existingID string, inserted bool, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t := ix.tenant(rec.TenantID)
	if rec.ContentHash != "" {
		if id, ok := t.byHash[rec.ContentHash]; ok {
			return id, false, nil
		}
	}
	if max > 0 && len(t.byID) >= max {
		return "", false, fmt.Errorf("%w: tenant %q at %d of %d records",
			core.ErrQuotaExceeded, rec.TenantID, len(t.byID), max)
	}
	if rec.ContentHash != "" {
		t.byHash[rec.ContentHash] = rec.ID
	}
	t.byID[rec.ID] = rec
	return rec.ID, true, nil
}

// remove undoes an insert after a failed backend write.
func (ix *recordIndex) remove(tenantID, id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.tenants[tenantID]
	if !ok {
		return
	}
	if rec, ok := t.byID[id]; ok {
		if rec.ContentHash != "" && t.byHash[rec.ContentHash] == id {
			delete(t.byHash, rec.ContentHash)
		}
		delete(t.byID, id)
	}
}

func (ix *recordIndex) get(tenantID, id string) (*core.MemoryRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tenants[tenantID]
	if !ok {
		return nil, false
	}
	rec, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (ix *recordIndex) lookupHash(tenantID, hash string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tenants[tenantID]
	if !ok {
		return "", false
	}
	id, ok := t.byHash[hash]
	return id, ok
}

func (ix *recordIndex) count(tenantID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tenants[tenantID]
	if !ok {
		return 0
	}
	return len(t.byID)
}

func (ix *recordIndex) setRetained(tenantID, id string, retained bool) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.tenants[tenantID]
	if !ok {
		return false
	}
	rec, ok := t.byID[id]
	if !ok {
		return false
	}
	rec.Retained = retained
	return true
}

// expired collects ids of purgeable records: created before cutoff and
// not retained.
func (ix *recordIndex) expired(tenantID string, cutoff time.Time) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tenants[tenantID]
	if !ok {
		return nil
	}
	var ids []string
	for id, rec := range t.byID {
		if !rec.Retained && rec.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// all snapshots a tenant's records for linear-scan search.
func (ix *recordIndex) all(tenantID string) []*core.MemoryRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t, ok := ix.tenants[tenantID]
	if !ok {
		return nil
	}
	recs := make([]*core.MemoryRecord, 0, len(t.byID))
	for _, rec := range t.byID {
		cp := *rec
		recs = append(recs, &cp)
	}
	return recs
}

// snapshot serializes every record for the on-disk index file.
func (ix *recordIndex) snapshot() []byte {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var recs []*core.MemoryRecord
	for _, t := range ix.tenants {
		for _, rec := range t.byID {
			recs = append(recs, rec)
		}
	}
	b, _ := json.Marshal(recs)
	return b
}

// load rebuilds the index from a snapshot file. A missing file is an
// empty index, not an error.
func (ix *recordIndex) load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var recs []*core.MemoryRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, rec := range recs {
		t := ix.tenant(rec.TenantID)
		t.byID[rec.ID] = rec
		if rec.ContentHash != "" {
			t.byHash[rec.ContentHash] = rec.ID
		}
	}
	return nil
}

// save writes the snapshot atomically via a temp file rename.
func (ix *recordIndex) save(path string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, ix.snapshot(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Clean(path))
}
