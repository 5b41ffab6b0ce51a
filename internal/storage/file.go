package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dockbridge/internal/notification"
	logx "dockbridge/pkg/logx"
)

// fileStore keeps every record in memory and persists it as:
//   - <prefix>.snapshot.json (rows and next id, written on compaction)
//   - <prefix>.journal.jsonl (append-only operations since the snapshot)
//
// The journal is compacted into the snapshot every compactEvery writes, after
// a prune, and on Close.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File

	rows   map[int64]notification.Entity
	nextID int64
	writes int
}

const compactEvery = 1000

type journalOp string

const (
	opPut    journalOp = "put"
	opDelete journalOp = "del"
)

type snapshot struct {
	NextID int64                       `json:"next_id"`
	Rows   map[int64]map[string]string `json:"rows"`
}

type journalRecord struct {
	Op  journalOp         `json:"op"`
	ID  int64             `json:"id"`
	Row map[string]string `json:"row,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	rows := map[int64]notification.Entity{}
	nextID, err := loadSnapshot(snapPath, rows)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("snapshot unreadable, starting from journal", logx.Err(err))
	}
	maxID, err := replayJournal(journalPath, rows)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("journal replay stopped early", logx.Err(err))
	}
	if maxID >= nextID {
		nextID = maxID + 1
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	for id := range rows {
		if id >= nextID {
			nextID = id + 1
		}
	}
	log.Debug("file store opened", logx.Int("rows", len(rows)), logx.String("prefix", prefix))
	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		rows:         rows,
		nextID:       nextID,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	cerr := s.compactLocked()
	err := s.journal.Close()
	s.journal = nil
	if cerr != nil {
		return cerr
	}
	return err
}

func (s *fileStore) Put(ctx context.Context, e notification.Entity) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, errors.New("journal closed")
	}
	e = e.Clone()
	if !e.IsValid() {
		e.SetID(s.nextID)
		s.nextID++
	} else if e.ID() >= s.nextID {
		s.nextID = e.ID() + 1
	}
	if err := s.appendLocked(journalRecord{Op: opPut, ID: e.ID(), Row: toRow(e)}); err != nil {
		return 0, err
	}
	s.rows[e.ID()] = e
	return e.ID(), nil
}

func (s *fileStore) Get(ctx context.Context, id int64) (notification.Entity, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return notification.New(), ErrNotFound
	}
	return e.Clone(), nil
}

// List returns matching records newest first.
func (s *fileStore) List(ctx context.Context, f ListFilter) ([]notification.Entity, error) {
	_ = ctx
	s.mu.Lock()
	out := make([]notification.Entity, 0, len(s.rows))
	for _, e := range s.rows {
		if f.match(e) {
			out = append(out, e.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CTime() != out[j].CTime() {
			return out[i].CTime() > out[j].CTime()
		}
		return out[i].ID() > out[j].ID()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *fileStore) SetProcessed(ctx context.Context, id int64, t notification.ProcessedType) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	e.SetProcessedType(t)
	if err := s.appendLocked(journalRecord{Op: opPut, ID: id, Row: toRow(e)}); err != nil {
		return err
	}
	s.rows[id] = e
	return nil
}

func (s *fileStore) Delete(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return ErrNotFound
	}
	if err := s.appendLocked(journalRecord{Op: opDelete, ID: id}); err != nil {
		return err
	}
	delete(s.rows, id)
	return nil
}

func (s *fileStore) Prune(ctx context.Context, before time.Time) (int, error) {
	_ = ctx
	cutoff := before.UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, errors.New("journal closed")
	}
	n := 0
	for id, e := range s.rows {
		if e.CTime() < cutoff {
			delete(s.rows, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.compactLocked()
}

func (s *fileStore) appendLocked(r journalRecord) error {
	if s.journal == nil {
		return errors.New("journal closed")
	}
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	snap := snapshot{NextID: s.nextID, Rows: make(map[int64]map[string]string, len(s.rows))}
	for id, e := range s.rows {
		snap.Rows[id] = toRow(e)
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, 2)
	return err
}

// loadSnapshot fills out and returns the next id to assign.
func loadSnapshot(path string, out map[int64]notification.Entity) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 1, err
	}
	defer f.Close()
	var snap snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return 1, err
	}
	for id, row := range snap.Rows {
		e := fromRow(row)
		e.SetID(id)
		out[id] = e
	}
	if snap.NextID < 1 {
		snap.NextID = 1
	}
	return snap.NextID, nil
}

// replayJournal applies the journal to out and returns the highest id seen,
// deleted ones included.
func replayJournal(path string, out map[int64]notification.Entity) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var maxID int64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.ID <= 0 {
			continue
		}
		if r.ID > maxID {
			maxID = r.ID
		}
		switch r.Op {
		case opPut:
			e := fromRow(r.Row)
			e.SetID(r.ID)
			out[r.ID] = e
		case opDelete:
			delete(out, r.ID)
		}
	}
	return maxID, sc.Err()
}
