package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/service/registry"
	"github.com/molginc/actionlib/service/registry/criteria"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"log"
	"strings"
	"sync"
)

// Service implements filesystem-backed goal record storage, one JSON
// document per goal under the base URL.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

// Ensure Service implements registry.Service
var _ registry.Service[string, model.GoalRecord] = (*Service)(nil)

// Save persists a goal record
func (s *Service) Save(ctx context.Context, record *model.GoalRecord) error {
	if record == nil {
		return registry.ErrNilEntity
	}
	if record.ID == "" {
		return registry.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal goal record: %w", err)
	}

	recordURL := s.recordURL(record.ID)
	if err = s.fs.Upload(ctx, recordURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save goal record to %s: %w", recordURL, err)
	}
	return nil
}

// Load retrieves a goal record by ID
func (s *Service) Load(ctx context.Context, id string) (*model.GoalRecord, error) {
	if id == "" {
		return nil, registry.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recordURL := s.recordURL(id)
	exists, err := s.fs.Exists(ctx, recordURL)
	if err != nil {
		return nil, fmt.Errorf("failed to check if goal record exists: %w", err)
	}
	if !exists {
		return nil, registry.ErrNotFound
	}

	data, err := s.fs.DownloadWithURL(ctx, recordURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read goal record: %w", err)
	}

	var record model.GoalRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goal record: %w", err)
	}
	return &record, nil
}

// Delete removes a goal record
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return registry.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.delete(ctx, id)
}

func (s *Service) delete(ctx context.Context, id string) error {
	recordURL := s.recordURL(id)
	exists, err := s.fs.Exists(ctx, recordURL)
	if err != nil {
		return fmt.Errorf("failed to check if goal record exists: %w", err)
	}
	if !exists {
		return registry.ErrNotFound
	}
	if err := s.fs.Delete(ctx, recordURL); err != nil {
		return fmt.Errorf("failed to delete goal record: %w", err)
	}
	return nil
}

// List returns all stored goal records
func (s *Service) List(ctx context.Context, parameters ...*registry.Parameter) ([]*model.GoalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.list(ctx, parameters...)
}

func (s *Service) list(ctx context.Context, parameters ...*registry.Parameter) ([]*model.GoalRecord, error) {
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list goal records: %w", err)
	}

	var records []*model.GoalRecord
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			log.Printf("failed to read goal record %s: %v", object.URL(), err)
			continue
		}
		var record model.GoalRecord
		if err := json.Unmarshal(data, &record); err != nil {
			log.Printf("failed to unmarshal goal record %s: %v", object.URL(), err)
			continue
		}
		if !criteria.FilterByStatus(string(record.Status), parameters) {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

// Evict deletes every record matching the predicate
func (s *Service) Evict(ctx context.Context, predicate func(*model.GoalRecord) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.list(ctx)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, record := range records {
		if !predicate(record) {
			continue
		}
		if err := s.delete(ctx, record.ID); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// recordURL returns the storage location for a goal record
func (s *Service) recordURL(id string) string {
	return url.Join(s.baseURL, fmt.Sprintf("%s.json", id))
}

// New creates a filesystem goal record store rooted at baseURL
func New(baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	fs := afs.New()

	ctx := context.Background()
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	baseURL = url.Normalize(baseURL, file.Scheme)

	return &Service{
		baseURL: baseURL,
		fs:      fs,
	}, nil
}
