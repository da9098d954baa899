package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	stdatomic "sync/atomic"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/idempotency"

	"github.com/philippgille/chromem-go"
)

const eventLogName = "events.jsonl"

var ErrWorkerStopped = errors.New("store worker stopped")

type Operation int

const (
	OpAppendEvent Operation = iota
	OpReadEvents
	OpSaveIdempotency
	OpUpsertVector
	OpSearchVectors
)

// Request is one unit of work for the worker goroutine. Every file and
// vector mutation for a workspace goes through the inbox, in order.
type Request struct {
	Op       Operation
	Payload  interface{}
	Result   chan error
	Response chan interface{}
}

type AppendEventPayload struct {
	Record EventRecord
}

type ReadEventsPayload struct {
	Name  string // empty = all
	Limit int    // 0 = all
}

type UpsertVectorPayload struct {
	Collection string
	Document   VectorDocument
}

type SearchVectorsPayload struct {
	Collection string
	Vector     []float32
	Limit      int
}

type RuntimeConfig struct {
	LockTimeout         time.Duration
	LockRetry           time.Duration
	InboxSize           int
	EventRotateMaxBytes int64
}

type Worker struct {
	workspaceID         string
	basePath            string
	inbox               chan Request
	idemStore           *idempotency.Store
	fileLock            *FileLock
	quit                chan struct{}
	stopOnce            sync.Once
	wg                  sync.WaitGroup
	vectorDB            *chromem.DB
	running             stdatomic.Bool
	eventRotateMaxBytes int64
}

func NewWorker(workspaceID string, workspaceRootPath string, runtimeCfg RuntimeConfig) (*Worker, error) {
	basePath, err := GetWorkspacePath(workspaceID, workspaceRootPath)
	if err != nil {
		return nil, err
	}

	for _, d := range []string{"events", "governance", "scheduler", "vectors"} {
		if err := os.MkdirAll(filepath.Join(basePath, d), 0755); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", d, err)
		}
	}

	defaults := DefaultFileLockConfig()
	if runtimeCfg.LockTimeout <= 0 {
		runtimeCfg.LockTimeout = defaults.LockTimeout
	}
	if runtimeCfg.LockRetry <= 0 {
		runtimeCfg.LockRetry = defaults.LockRetry
	}
	if runtimeCfg.InboxSize <= 0 {
		runtimeCfg.InboxSize = config.DefaultStoreInboxSize
	}
	if runtimeCfg.EventRotateMaxBytes <= 0 {
		runtimeCfg.EventRotateMaxBytes = config.DefaultStoreEventRotateMaxBytes
	}

	fileLock, err := NewFileLock(workspaceID, basePath, &FileLockConfig{
		LockTimeout: runtimeCfg.LockTimeout,
		LockRetry:   runtimeCfg.LockRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	idemStore, err := idempotency.NewStore(filepath.Join(basePath, "governance", "processed_keys.json"))
	if err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to load idempotency store: %w", err)
	}

	// Embeddings are computed by the caller, so collections carry no embedding func.
	vectorDB, err := chromem.NewPersistentDB(filepath.Join(basePath, "vectors"), false)
	if err != nil {
		fileLock.Unlock()
		return nil, fmt.Errorf("failed to init vector db: %w", err)
	}

	return &Worker{
		workspaceID:         workspaceID,
		basePath:            basePath,
		inbox:               make(chan Request, runtimeCfg.InboxSize),
		idemStore:           idemStore,
		fileLock:            fileLock,
		quit:                make(chan struct{}),
		vectorDB:            vectorDB,
		eventRotateMaxBytes: runtimeCfg.EventRotateMaxBytes,
	}, nil
}

func (w *Worker) WorkspaceID() string { return w.workspaceID }

func (w *Worker) BasePath() string { return w.basePath }

func (w *Worker) Start() {
	w.running.Store(true)
	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) loop() {
	slog.Info("StoreWorker started", "workspace", w.workspaceID)
	defer func() {
		w.running.Store(false)
		w.wg.Done()
	}()

	if pruned := w.idemStore.Prune(); pruned > 0 {
		slog.Info("Pruned expired idempotency keys", "count", pruned)
		if err := w.idemStore.Save(); err != nil {
			slog.Error("Failed to save pruned keys", "error", err)
		}
	}

	for {
		select {
		case req := <-w.inbox:
			err := w.handle(req)
			if req.Result != nil {
				req.Result <- err
			}
		case <-w.quit:
			slog.Info("StoreWorker stopping", "workspace", w.workspaceID)
			return
		}
	}
}

func (w *Worker) handle(req Request) error {
	switch req.Op {
	case OpAppendEvent:
		p, ok := req.Payload.(AppendEventPayload)
		if !ok {
			return fmt.Errorf("invalid payload for AppendEvent")
		}
		return w.appendEvent(p.Record)
	case OpReadEvents:
		p, ok := req.Payload.(ReadEventsPayload)
		if !ok {
			return fmt.Errorf("invalid payload for ReadEvents")
		}
		records, err := w.readEvents(p.Name, p.Limit)
		if req.Response != nil {
			req.Response <- records
		}
		return err
	case OpSaveIdempotency:
		return w.idemStore.Save()
	case OpUpsertVector:
		p, ok := req.Payload.(UpsertVectorPayload)
		if !ok {
			return fmt.Errorf("invalid payload for UpsertVector")
		}
		return w.upsertVector(p)
	case OpSearchVectors:
		p, ok := req.Payload.(SearchVectorsPayload)
		if !ok {
			return fmt.Errorf("invalid payload for SearchVectors")
		}
		res, err := w.searchVectors(p)
		if req.Response != nil {
			req.Response <- res
		}
		return err
	default:
		return fmt.Errorf("unknown operation: %d", req.Op)
	}
}

func (w *Worker) eventLogPath() string {
	return filepath.Join(w.basePath, "events", eventLogName)
}

func (w *Worker) appendEvent(record EventRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	path := w.eventLogPath()
	if err := w.checkAndRotate(path); err != nil {
		slog.Warn("Failed to rotate event log", "workspace", w.workspaceID, "error", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// readEvents returns the newest limit records of the live log, oldest first.
// Rotated backups are not read. Corrupt lines are skipped.
func (w *Worker) readEvents(name string, limit int) ([]EventRecord, error) {
	data, err := os.ReadFile(w.eventLogPath())
	if os.IsNotExist(err) {
		return []EventRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := []EventRecord{}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec EventRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			slog.Warn("Skipping corrupt event line", "workspace", w.workspaceID, "error", err)
			continue
		}
		if name != "" && rec.Name != name {
			continue
		}
		records = append(records, rec)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func (w *Worker) checkAndRotate(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < w.eventRotateMaxBytes {
		return nil
	}

	slog.Info("Rotating event log", "workspace", w.workspaceID, "size", info.Size())
	backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102150405"))
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}

func (w *Worker) upsertVector(p UpsertVectorPayload) error {
	col, err := w.vectorDB.GetOrCreateCollection(p.Collection, nil, nil)
	if err != nil {
		return err
	}
	// AddDocuments is an upsert in chromem.
	return col.AddDocuments(context.Background(), []chromem.Document{
		{
			ID:        p.Document.ID,
			Metadata:  p.Document.Metadata,
			Embedding: p.Document.Vector,
			Content:   p.Document.Content,
		},
	}, 1)
}

func (w *Worker) searchVectors(p SearchVectorsPayload) ([]VectorResult, error) {
	col := w.vectorDB.GetCollection(p.Collection, nil)
	if col == nil {
		return []VectorResult{}, nil
	}

	// chromem rejects nResults larger than the collection.
	n := p.Limit
	if count := col.Count(); n <= 0 || n > count {
		n = count
	}
	if n == 0 {
		return []VectorResult{}, nil
	}

	docs, err := col.QueryEmbedding(context.Background(), p.Vector, n, nil, nil)
	if err != nil {
		return nil, err
	}

	results := make([]VectorResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, VectorResult{
			ID:       doc.ID,
			Score:    doc.Similarity,
			Metadata: doc.Metadata,
			Content:  doc.Content,
		})
	}
	return results, nil
}

// submit hands a request to the loop and waits for its result.
func (w *Worker) submit(ctx context.Context, req Request) error {
	req.Result = make(chan error, 1)
	select {
	case w.inbox <- req:
	case <-w.quit:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.Result:
		return err
	case <-w.quit:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Public API for other components

func (w *Worker) AppendEvent(ctx context.Context, record EventRecord) error {
	return w.submit(ctx, Request{
		Op:      OpAppendEvent,
		Payload: AppendEventPayload{Record: record},
	})
}

func (w *Worker) ReadEvents(ctx context.Context, name string, limit int) ([]EventRecord, error) {
	resp := make(chan interface{}, 1)
	err := w.submit(ctx, Request{
		Op:       OpReadEvents,
		Payload:  ReadEventsPayload{Name: name, Limit: limit},
		Response: resp,
	})
	if err != nil {
		return nil, err
	}
	return (<-resp).([]EventRecord), nil
}

func (w *Worker) UpsertVector(ctx context.Context, collection string, doc VectorDocument) error {
	return w.submit(ctx, Request{
		Op:      OpUpsertVector,
		Payload: UpsertVectorPayload{Collection: collection, Document: doc},
	})
}

// SearchVectors returns up to limit nearest documents; limit <= 0 means all.
func (w *Worker) SearchVectors(ctx context.Context, collection string, vector []float32, limit int) ([]VectorResult, error) {
	resp := make(chan interface{}, 1)
	err := w.submit(ctx, Request{
		Op:       OpSearchVectors,
		Payload:  SearchVectorsPayload{Collection: collection, Vector: vector, Limit: limit},
		Response: resp,
	})
	if err != nil {
		return nil, err
	}
	return (<-resp).([]VectorResult), nil
}

func (w *Worker) SaveIdempotency() {
	select {
	case w.inbox <- Request{Op: OpSaveIdempotency}:
	case <-w.quit:
	}
}

func (w *Worker) SaveIdempotencySync(ctx context.Context) error {
	return w.submit(ctx, Request{Op: OpSaveIdempotency})
}

// CheckAndMarkKey reports whether key was already seen within ttl and marks
// it otherwise. Persistence is queued on the worker.
func (w *Worker) CheckAndMarkKey(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		if d, err := config.DurationOrDefault("", config.DefaultStoreIdempotencyTTL); err == nil {
			ttl = d
		}
	}
	exists := w.idemStore.CheckAndMark(key, ttl)
	if !exists {
		w.SaveIdempotency()
	}
	return exists
}

// ReleaseKey unmarks a key whose work did not complete, so a retry is
// accepted.
func (w *Worker) ReleaseKey(key string) {
	w.idemStore.Unmark(key)
	w.SaveIdempotency()
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		slog.Info("StoreWorker Stop called", "workspace", w.workspaceID, "lock_held", w.fileLock.IsLocked())
		close(w.quit)
		w.wg.Wait()

		if err := w.idemStore.Save(); err != nil {
			slog.Error("Failed to flush idempotency keys", "error", err)
		}
		if w.fileLock.IsLocked() {
			w.fileLock.Unlock()
		}
	})
}

func (w *Worker) IsLockHeld() bool {
	return w.fileLock.IsLocked()
}

func (w *Worker) IsRunning() bool {
	return w.fileLock.IsLocked() && w.running.Load()
}
