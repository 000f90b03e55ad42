package messaging

import (
	"context"
)

// Vendor names a queue implementation.
type Vendor string

const (
	// VendorMemory is the in-process channel-backed queue.
	VendorMemory Vendor = "memory"

	// VendorFS is the durable filesystem-backed queue.
	VendorFS Vendor = "fs"
)

// Queue moves goal submissions and cancel requests between clients and a
// goal server. Implementations must be safe for concurrent publishers and
// consumers.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message; depending on the
	// vendor the message is redelivered or moved to the dead-letter journal
	Nack(err error) error
}

// QueueConfig carries vendor-independent queue settings; the facade uses it
// to construct the goal and cancel queues.
type QueueConfig struct {
	// Vendor selects the implementation, memory by default
	Vendor Vendor `json:"vendor,omitempty" yaml:"vendor,omitempty"`

	// BufferSize bounds the in-flight message buffer (memory vendor)
	BufferSize int `json:"bufferSize,omitempty" yaml:"bufferSize,omitempty"`

	// MaxRetries specifies how many times a nacked message is redelivered
	MaxRetries int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`

	// RetryDelayMs specifies the wait before a redelivery
	RetryDelayMs int `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty"`

	// BaseURL is the storage location for the fs vendor (file://, mem://, ...)
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}
