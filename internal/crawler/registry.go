package crawler

import (
	"context"
	"fmt"
	"sort"
)

// Handler advances a crawl by one step.
type Handler func(ctx context.Context, inv Invocation, req CrawlRequest) ([]NextRequest, error)

// Registry maps operation tags to handlers.
type Registry struct {
	handlers map[Operation]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Operation]Handler)}
}

// Register binds op to h. Registering the same operation twice is an error.
func (r *Registry) Register(op Operation, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler for %s is nil", op)
	}
	if _, ok := r.handlers[op]; ok {
		return fmt.Errorf("handler for %s already registered", op)
	}
	r.handlers[op] = h
	return nil
}

// Resolve parses tag and returns the handler registered for it.
func (r *Registry) Resolve(tag string) (Operation, Handler, error) {
	op, err := ParseOperation(tag)
	if err != nil {
		return Operation{}, nil, err
	}
	h, ok := r.handlers[op]
	if !ok {
		return Operation{}, nil, fmt.Errorf("%w: no handler registered for %s", ErrOperationParse, op)
	}
	return op, h, nil
}

// Operations lists the registered operations in tag order.
func (r *Registry) Operations() []Operation {
	out := make([]Operation, 0, len(r.handlers))
	for op := range r.handlers {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
