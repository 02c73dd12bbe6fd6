package journal

import "sync"

// journalIndex tracks record metadata for a journal, giving the shipper
// fast access to unshipped records.
type journalIndex struct {
	mu         sync.RWMutex
	records    []journalRecord
	seqToIndex map[int64]int
}

func newJournalIndex() *journalIndex {
	return &journalIndex{
		records:    make([]journalRecord, 0, 1000),
		seqToIndex: make(map[int64]int, 1000),
	}
}

// Add adds a record to the index.
func (idx *journalIndex) Add(rec journalRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.seqToIndex[rec.sequence] = len(idx.records)
	idx.records = append(idx.records, rec)
}

// GetUnshipped returns records that still need delivery. Failed records
// are included so an observer outage is retried on the next cycle.
func (idx *journalIndex) GetUnshipped() []journalRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var unshipped []journalRecord
	for _, rec := range idx.records {
		if rec.status == RecordPending || rec.status == RecordFailed {
			unshipped = append(unshipped, rec)
		}
	}
	return unshipped
}

// MarkShipped marks the given records as shipped.
func (idx *journalIndex) MarkShipped(recs []journalRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, rec := range recs {
		if i, ok := idx.seqToIndex[rec.sequence]; ok {
			idx.records[i].status = RecordShipped
		}
	}
}

// MarkFailed marks the given records as failed.
func (idx *journalIndex) MarkFailed(recs []journalRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, rec := range recs {
		if i, ok := idx.seqToIndex[rec.sequence]; ok {
			idx.records[i].status = RecordFailed
		}
	}
}

// Count returns the total number of records.
func (idx *journalIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

func (idx *journalIndex) countStatus(status uint8) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count := 0
	for _, rec := range idx.records {
		if rec.status == status {
			count++
		}
	}
	return count
}

// CountPending returns the number of records awaiting delivery.
func (idx *journalIndex) CountPending() int {
	return idx.countStatus(RecordPending)
}

// CountShipped returns the number of delivered records.
func (idx *journalIndex) CountShipped() int {
	return idx.countStatus(RecordShipped)
}

// CountFailed returns the number of records whose last cycle failed.
func (idx *journalIndex) CountFailed() int {
	return idx.countStatus(RecordFailed)
}
