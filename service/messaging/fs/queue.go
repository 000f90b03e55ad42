package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/molginc/actionlib/internal/clock"
	"github.com/molginc/actionlib/internal/idgen"
	"github.com/molginc/actionlib/service/messaging"
)

// MessageState represents where a message sits in the queue lifecycle
type MessageState string

const (
	// MessageStatePending indicates a message is waiting to be delivered
	MessageStatePending MessageState = "pending"

	// MessageStateProcessing indicates a message has been handed to a consumer
	MessageStateProcessing MessageState = "processing"

	// MessageStateCompleted indicates a message was acknowledged
	MessageStateCompleted MessageState = "completed"

	// MessageStateFailed indicates a message awaits redelivery
	MessageStateFailed MessageState = "failed"
)

// Message implements messaging.Message for the filesystem queue
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack acknowledges that the message was processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processed {
		return fmt.Errorf("message %v already processed", m.ID)
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = clock.Now()
	return m.queue.completeMessage(context.Background(), m)
}

// Nack indicates that the message processing failed; the message is parked
// for redelivery or dead-lettered once past the retry limit.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processed {
		return fmt.Errorf("message %v already processed", m.ID)
	}
	m.processed = true
	m.State = MessageStateFailed
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	return m.queue.failMessage(context.Background(), m)
}

// Config holds configuration for the filesystem queue
type Config struct {
	// BaseURL is the afs location holding the queue state directories,
	// e.g. file:///var/lib/goals or mem://localhost/goals
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "file:///tmp/actionlib/queue",
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Queue implements a durable messaging.Queue on top of afs. Each message is
// one JSON document; its state is encoded by the directory holding it.
// Pending documents are named with a monotonic prefix so that lexical order
// equals arrival order and goals are delivered first-in first-out.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingURL    string
	processingURL string
	completedURL  string
	failedURL     string
	dlqURL        string
	mu            sync.Mutex
}

// New creates a filesystem-backed queue rooted at config.BaseURL.
func New[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("queue base URL cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingURL:    url.Join(config.BaseURL, "pending"),
		processingURL: url.Join(config.BaseURL, "processing"),
		completedURL:  url.Join(config.BaseURL, "completed"),
		failedURL:     url.Join(config.BaseURL, "failed"),
		dlqURL:        url.Join(config.BaseURL, "dlq"),
	}

	ctx := context.Background()
	for _, location := range []string{q.pendingURL, q.processingURL, q.completedURL, q.failedURL, q.dlqURL} {
		if exists, _ := fs.Exists(ctx, location); exists {
			continue
		}
		if err := fs.Create(ctx, location, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create queue directory %s: %w", location, err)
		}
	}
	return q, nil
}

// Publish writes a new message into the pending directory.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		queue:     q,
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	name := fmt.Sprintf("%020d-%s.json", now.UnixNano(), message.ID)
	return q.upload(ctx, url.Join(q.pendingURL, name), data)
}

// Consume takes the oldest pending message (retrying failed ones first) and
// moves it to the processing directory. It returns (nil, nil) when the queue
// is empty.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	retry, err := q.takeFailed(ctx)
	if err != nil {
		return nil, err
	}
	if retry != nil {
		return retry, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.listDocuments(ctx, q.pendingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}
	obj := pending[0]

	message, err := q.readMessage(ctx, obj.URL())
	if err != nil {
		// park unreadable documents so they do not wedge the queue
		_ = q.fs.Move(ctx, obj.URL(), url.Join(q.failedURL, "invalid-"+obj.Name()))
		return nil, err
	}
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	message.queue = q
	message.name = obj.Name()

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message %v: %w", message.ID, err)
	}
	if err := q.upload(ctx, url.Join(q.processingURL, obj.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete pending message: %w", err)
	}
	return message, nil
}

// Size returns the number of pending messages.
func (q *Queue[T]) Size(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, err := q.listDocuments(ctx, q.pendingURL)
	if err != nil {
		return 0
	}
	return len(pending)
}

// takeFailed redelivers the oldest failed message still under the retry
// limit, moving exhausted ones to the dead-letter directory.
func (q *Queue[T]) takeFailed(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	failed, err := q.listDocuments(ctx, q.failedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed messages: %w", err)
	}
	if len(failed) == 0 {
		return nil, nil
	}
	obj := failed[0]

	message, err := q.readMessage(ctx, obj.URL())
	if err != nil {
		_ = q.fs.Move(ctx, obj.URL(), url.Join(q.dlqURL, "invalid-"+obj.Name()))
		return nil, err
	}
	if message.Retries > q.config.MaxRetries {
		if err := q.fs.Move(ctx, obj.URL(), url.Join(q.dlqURL, obj.Name())); err != nil {
			return nil, fmt.Errorf("failed to dead-letter message %v: %w", message.ID, err)
		}
		return nil, nil
	}

	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	message.queue = q
	message.name = obj.Name()

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message %v: %w", message.ID, err)
	}
	if err := q.upload(ctx, url.Join(q.processingURL, obj.Name()), data); err != nil {
		return nil, fmt.Errorf("failed to move message to processing: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete failed message: %w", err)
	}
	return message, nil
}

// completeMessage moves an acknowledged message to the completed directory.
func (q *Queue[T]) completeMessage(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal completed message: %w", err)
	}
	if err := q.upload(ctx, url.Join(q.completedURL, m.name), data); err != nil {
		return fmt.Errorf("failed to write completed message: %w", err)
	}
	return q.deleteIfExists(ctx, url.Join(q.processingURL, m.name))
}

// failMessage parks a nacked message for redelivery or dead-letters it.
func (q *Queue[T]) failMessage(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal failed message: %w", err)
	}
	destination := url.Join(q.failedURL, m.name)
	if m.Retries > q.config.MaxRetries {
		destination = url.Join(q.dlqURL, m.name)
	}
	if err := q.upload(ctx, destination, data); err != nil {
		return fmt.Errorf("failed to park message %v: %w", m.ID, err)
	}
	return q.deleteIfExists(ctx, url.Join(q.processingURL, m.name))
}

// listDocuments lists the JSON documents at location in lexical (arrival)
// order.
func (q *Queue[T]) listDocuments(ctx context.Context, location string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, location, option.NewRecursive(false))
	if err != nil {
		return nil, err
	}
	var documents []storage.Object
	for _, candidate := range objects {
		if !candidate.IsDir() && strings.HasSuffix(candidate.Name(), ".json") {
			documents = append(documents, candidate)
		}
	}
	sort.Slice(documents, func(i, j int) bool {
		return documents[i].Name() < documents[j].Name()
	})
	return documents, nil
}

func (q *Queue[T]) upload(ctx context.Context, location string, data []byte) error {
	return q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) deleteIfExists(ctx context.Context, location string) error {
	if exists, _ := q.fs.Exists(ctx, location); !exists {
		return nil
	}
	return q.fs.Delete(ctx, location)
}

func (q *Queue[T]) readMessage(ctx context.Context, location string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", location, err)
	}
	var message Message[T]
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", location, err)
	}
	return &message, nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
