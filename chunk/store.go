package chunk

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/dot5enko/simple-chunk-db/codec"
	"github.com/dot5enko/simple-chunk-db/dberr"
	"github.com/dot5enko/simple-chunk-db/io"
	"github.com/dot5enko/simple-chunk-db/metrics"
	"github.com/dot5enko/simple-chunk-db/schema"
	"golang.org/x/sync/singleflight"
)

const debugDumpBytes = 256

type Options struct {
	Dir          string
	Ext          string
	MaxChunkSize int
	Codec        codec.Codec

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// only used to label metrics
	Tmp bool
}

// Store keeps the rows of one table as dense numbered chunk files:
// {dir}/0{ext}, {dir}/1{ext}, ... Only the last chunk may be partially filled
// by appends, chunk indices are never reused.
type Store struct {
	opts Options
	meta schema.Metadata

	logger *slog.Logger

	mu    sync.Mutex
	total int

	loadGroup singleflight.Group
}

func NewStore(meta schema.Metadata, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		opts:   opts,
		meta:   meta,
		logger: logger.With("table", meta.TableName),
	}
}

// Open derives the chunk count from the files on disk, a missing directory is an empty table.
func (s *Store) Open() error {

	if _, statErr := os.Stat(s.opts.Dir); errors.Is(statErr, os.ErrNotExist) {
		s.logger.Warn("uninitialized table found", "dir", s.opts.Dir)
		s.setTotal(0)
		return nil
	}

	total, err := s.DiskChunkCount()
	if err != nil {
		return err
	}

	s.setTotal(total)
	return nil
}

func (s *Store) Dir() string {
	return s.opts.Dir
}

func (s *Store) MaxChunkSize() int {
	return s.opts.MaxChunkSize
}

func (s *Store) ChunkPath(idx int) string {
	return filepath.Join(s.opts.Dir, strconv.Itoa(idx)+s.opts.Ext)
}

func (s *Store) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.total
}

func (s *Store) setTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = total
}

// DiskChunkCount is max numeric chunk file stem + 1, or 0 for an absent or empty dir.
func (s *Store) DiskChunkCount() (int, error) {

	indices, err := s.diskChunkIndices()
	if err != nil {
		return 0, err
	}

	maxIdx := -1
	for _, idx := range indices {
		maxIdx = max(maxIdx, idx)
	}

	return maxIdx + 1, nil
}

func (s *Store) diskChunkIndices() ([]int, error) {

	entries, readErr := os.ReadDir(s.opts.Dir)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return nil, nil
		}
		return nil, dberr.Wrap(dberr.Internal, readErr, "unable to list chunks of %s", s.meta.TableName)
	}

	var indices []int

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		if !strings.HasSuffix(name, s.opts.Ext) {
			continue
		}

		idx, convErr := strconv.Atoi(strings.TrimSuffix(name, s.opts.Ext))
		if convErr != nil || idx < 0 {
			continue
		}

		indices = append(indices, idx)
	}

	return indices, nil
}

func (s *Store) LoadChunk(idx int) ([]schema.Row, error) {

	total := s.ChunkCount()
	if idx < 0 || idx >= total {
		return nil, dberr.New(dberr.NotFound, "chunk %d of table %s is out of range [0, %d)", idx, s.meta.TableName, total)
	}

	v, err, shared := s.loadGroup.Do(strconv.Itoa(idx), func() (any, error) {
		return s.loadFromDisk(idx)
	})

	if err != nil {
		return nil, err
	}

	rows := v.([]schema.Row)
	if shared {
		rows = schema.CloneRows(rows)
	}

	return rows, nil
}

func (s *Store) loadFromDisk(idx int) ([]schema.Row, error) {

	path := s.ChunkPath(idx)

	raw, readErr := io.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			s.logger.Error("chunk file is missing, storage is not consistent", "chunk", idx, "path", path)
			return nil, dberr.New(dberr.Inconsistent, "chunk %d of table %s is missing on disk", idx, s.meta.TableName)
		}
		return nil, dberr.Wrap(dberr.Internal, readErr, "unable to read chunk %d of table %s", idx, s.meta.TableName)
	}

	rows, decodeErr := s.opts.Codec.Decode(s.meta, raw)
	if decodeErr != nil {
		if s.logger.Enabled(context.Background(), slog.LevelDebug) {
			s.logger.Debug("undecodable chunk payload", "chunk", idx, "head", spew.Sdump(raw[:min(len(raw), debugDumpBytes)]))
		}
		return nil, decodeErr
	}

	if m := s.opts.Metrics; m != nil {
		m.ChunksLoaded.WithLabelValues(metrics.TableKind(s.opts.Tmp)).Inc()
	}

	return rows, nil
}

func (s *Store) writeChunk(idx int, rows []schema.Row) error {

	encoded, encodeErr := s.opts.Codec.Encode(s.meta, rows)
	if encodeErr != nil {
		return encodeErr
	}

	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		return dberr.Wrap(dberr.Internal, err, "unable to create table dir %s", s.opts.Dir)
	}

	if err := io.WriteFileAtomic(s.ChunkPath(idx), encoded); err != nil {
		return dberr.Wrap(dberr.Internal, err, "unable to write chunk %d of table %s", idx, s.meta.TableName)
	}

	if m := s.opts.Metrics; m != nil {
		m.ChunksWritten.WithLabelValues(metrics.TableKind(s.opts.Tmp)).Inc()
		m.BytesWritten.Add(float64(len(encoded)))
	}

	return nil
}

// appendChunk allocates the next index, refusing to overwrite an existing file
func (s *Store) appendChunk(rows []schema.Row) error {

	next := s.ChunkCount()
	path := s.ChunkPath(next)

	if _, statErr := os.Stat(path); statErr == nil {
		s.logger.Error("new chunk would override an existing file, storage is not consistent", "path", path)
		return dberr.New(dberr.AlreadyExists, "chunk %d of table %s already exists", next, s.meta.TableName)
	}

	if err := s.writeChunk(next, rows); err != nil {
		return err
	}

	s.setTotal(next + 1)
	return nil
}

func (s *Store) CreateNewChunk() error {
	return s.appendChunk(nil)
}

// AppendBulk tops up the last chunk and then writes as many new chunks as needed.
func (s *Store) AppendBulk(rows []schema.Row) error {

	if len(rows) == 0 {
		return nil
	}

	limit := s.opts.MaxChunkSize
	remaining := rows

	if total := s.ChunkCount(); total > 0 {
		last, loadErr := s.LoadChunk(total - 1)
		if loadErr != nil {
			return loadErr
		}

		if room := limit - len(last); room > 0 {
			n := min(room, len(remaining))

			if err := s.writeChunk(total-1, append(last, remaining[:n]...)); err != nil {
				return err
			}
			remaining = remaining[n:]
		}
	}

	for len(remaining) > 0 {
		n := min(limit, len(remaining))

		if err := s.appendChunk(remaining[:n]); err != nil {
			return err
		}
		remaining = remaining[n:]
	}

	return nil
}

func (s *Store) UpdateChunk(idx int, rows []schema.Row) error {

	total := s.ChunkCount()
	if idx < 0 || idx >= total {
		return dberr.New(dberr.InvalidArgument, "unable to update chunk %d of table %s, chunks: %d", idx, s.meta.TableName, total)
	}

	if len(rows) > s.opts.MaxChunkSize {
		return dberr.New(dberr.InvalidArgument, "chunk of %d rows exceeds capacity %d", len(rows), s.opts.MaxChunkSize)
	}

	return s.writeChunk(idx, rows)
}

// DestroyAllChunks removes every chunk file, the directory itself is left to the caller.
func (s *Store) DestroyAllChunks() error {

	s.logger.Warn("deleting all chunks", "dir", s.opts.Dir)

	indices, err := s.diskChunkIndices()
	if err != nil {
		return err
	}

	for _, idx := range indices {
		if removeErr := os.Remove(s.ChunkPath(idx)); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return dberr.Wrap(dberr.Internal, removeErr, "unable to remove chunk %d of table %s", idx, s.meta.TableName)
		}
	}

	s.setTotal(0)
	return nil
}

func (s *Store) Iter() *Iterator {
	return &Iterator{store: s, idx: -1}
}

// ForEachChunk walks chunks in index order and stops on the first error.
func (s *Store) ForEachChunk(fn func(idx int, rows []schema.Row) error) error {
	it := s.Iter()

	for it.Next() {
		if err := fn(it.Index(), it.Rows()); err != nil {
			return err
		}
	}

	return it.Err()
}
