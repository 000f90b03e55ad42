package coordinator

import "context"

type serviceKeyT struct{}

var serviceKey serviceKeyT

// NewContext returns a copy of ctx carrying the coordinator that is executing
// the current goal. The execution loop injects it before invoking the execute
// callback so handlers can reach coordinator-level operations, preempt
// polling and the queue-flushing terminals, without holding a direct
// reference.
func NewContext(ctx context.Context, service *Service) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, serviceKey, service)
}

// FromContext returns the coordinator carried by ctx, or nil when the context
// does not originate from an execution loop.
func FromContext(ctx context.Context) *Service {
	if ctx == nil {
		return nil
	}
	service, _ := ctx.Value(serviceKey).(*Service)
	return service
}
