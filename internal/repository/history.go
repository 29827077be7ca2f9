package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anime-shed/image-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/image-inspector-go/internal/errors"
	"github.com/anime-shed/image-inspector-go/internal/logger"
	"github.com/anime-shed/image-inspector-go/internal/storage"
	"github.com/anime-shed/image-inspector-go/pkg/models"
)

const (
	// HistoryKey is the storage key of the serialized history list
	HistoryKey = "metadataHistory"

	// DefaultHistoryLimit is the number of records kept
	DefaultHistoryLimit = 20

	// TimestampLayout is ISO-8601 UTC with milliseconds
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	filterAll = "all"
)

// HistoryRepository is the bounded, newest-first archive of inspections
type HistoryRepository interface {
	// Add archives metadata and returns the new record. A record is returned
	// even when persisting fails; the error is then a PersistenceError.
	Add(ctx context.Context, metadata *models.Metadata, imageURL *string) (models.HistoryRecord, error)
	List(ctx context.Context, query models.HistoryQuery) ([]models.HistoryRecord, error)
	Get(ctx context.Context, id int64) (models.HistoryRecord, error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	Export(ctx context.Context) ([]byte, error)
}

type historyRepository struct {
	store storage.KeyValueStore
	limit int
	now   func() time.Time

	mu      sync.Mutex
	loaded  bool
	records []models.HistoryRecord
	lastID  int64
}

// HistoryOption configures a history repository
type HistoryOption func(*historyRepository)

// WithClock replaces time.Now
func WithClock(now func() time.Time) HistoryOption {
	return func(r *historyRepository) {
		r.now = now
	}
}

// NewHistoryRepository creates a history repository over store; limit <= 0
// selects DefaultHistoryLimit.
func NewHistoryRepository(store storage.KeyValueStore, limit int, opts ...HistoryOption) HistoryRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	r := &historyRepository{
		store: store,
		limit: limit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// load reads the persisted list once. Any failure leaves an empty list.
func (r *historyRepository) load(ctx context.Context) {
	if r.loaded {
		return
	}
	r.loaded = true
	r.records = []models.HistoryRecord{}

	data, err := r.store.Get(ctx, HistoryKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return
	}
	if err == nil {
		var records []models.HistoryRecord
		if err = json.Unmarshal(data, &records); err == nil {
			r.records = records
			for _, rec := range records {
				if rec.ID > r.lastID {
					r.lastID = rec.ID
				}
			}
			return
		}
	}

	perr := apperrors.NewPersistenceError("failed to load history", err)
	logger.WithComponent("history").WithError(perr).Error("Falling back to empty history")
}

func (r *historyRepository) persist(ctx context.Context) error {
	data, err := json.Marshal(r.records)
	if err != nil {
		return apperrors.NewPersistenceError("failed to encode history", err)
	}
	if err := r.store.Set(ctx, HistoryKey, data); err != nil {
		perr := apperrors.NewPersistenceError("failed to save history", err)
		logger.WithComponent("history").WithError(perr).Error("History kept in memory only")
		return perr
	}
	return nil
}

// nextID is the current epoch ms, bumped past the previous id when the clock
// has not advanced
func (r *historyRepository) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

func (r *historyRepository) Add(ctx context.Context, metadata *models.Metadata, imageURL *string) (models.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)

	if metadata == nil {
		metadata = models.NewMetadata()
	}
	now := r.now()
	rec := models.HistoryRecord{
		ID:        r.nextID(now),
		Timestamp: now.UTC().Format(TimestampLayout),
		Metadata:  metadata.Clone(),
		ImageURL:  imageURL,
	}

	records := make([]models.HistoryRecord, 0, len(r.records)+1)
	records = append(records, rec)
	records = append(records, r.records...)
	if len(records) > r.limit {
		records = records[:r.limit]
	}
	r.records = records

	return rec, r.persist(ctx)
}

func (r *historyRepository) List(ctx context.Context, query models.HistoryQuery) ([]models.HistoryRecord, error) {
	r.mu.Lock()
	r.load(ctx)
	items := make([]models.HistoryRecord, len(r.records))
	copy(items, r.records)
	r.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(query.Search))
	typ := strings.TrimSpace(query.Type)

	filtered := items[:0]
	for _, rec := range items {
		name := rec.Metadata.Value(analyzer.KeyFileName)
		fileType := rec.Metadata.Value(analyzer.KeyFileType)

		if search != "" &&
			!strings.Contains(strings.ToLower(name), search) &&
			!strings.Contains(strings.ToLower(fileType), search) {
			continue
		}
		if typ != "" && typ != filterAll && fileType != typ {
			continue
		}
		filtered = append(filtered, rec)
	}

	sortRecords(filtered, query.Sort)
	return filtered, nil
}

func sortRecords(records []models.HistoryRecord, by models.HistorySort) {
	var less func(a, b models.HistoryRecord) bool

	switch by {
	case models.SortOldest:
		less = func(a, b models.HistoryRecord) bool { return recordTime(a).Before(recordTime(b)) }
	case models.SortName:
		less = func(a, b models.HistoryRecord) bool {
			return strings.ToLower(a.Metadata.Value(analyzer.KeyFileName)) < strings.ToLower(b.Metadata.Value(analyzer.KeyFileName))
		}
	case models.SortSize:
		less = func(a, b models.HistoryRecord) bool {
			return analyzer.ParseFileSize(a.Metadata.Value(analyzer.KeyFileSize)) < analyzer.ParseFileSize(b.Metadata.Value(analyzer.KeyFileSize))
		}
	default:
		less = func(a, b models.HistoryRecord) bool { return recordTime(a).After(recordTime(b)) }
	}

	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

func recordTime(rec models.HistoryRecord) time.Time {
	t, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return time.UnixMilli(rec.ID)
	}
	return t
}

func (r *historyRepository) Get(ctx context.Context, id int64) (models.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)

	for _, rec := range r.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return models.HistoryRecord{}, apperrors.NewNotFoundError("history item not found", ErrHistoryItemNotFound)
}

func (r *historyRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)

	idx := -1
	for i, rec := range r.records {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.NewNotFoundError("history item not found", ErrHistoryItemNotFound)
	}

	records := make([]models.HistoryRecord, 0, len(r.records)-1)
	records = append(records, r.records[:idx]...)
	records = append(records, r.records[idx+1:]...)
	r.records = records
	return r.persist(ctx)
}

func (r *historyRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)

	r.records = []models.HistoryRecord{}
	return r.persist(ctx)
}

func (r *historyRepository) Export(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)

	if len(r.records) == 0 {
		return nil, apperrors.NewValidationError("No history to export", ErrEmptyExport)
	}
	data, err := json.MarshalIndent(r.records, "", "  ")
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode history", err)
	}
	return data, nil
}
