package jobs

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher routes named jobs to registered handlers and validates their
// payload schemas before they enter the queue.
type Dispatcher struct {
	queue    *Queue
	validate *validator.Validate
	logger   *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher builds a dispatcher backed by a single worker-pool queue.
func NewDispatcher(name string, cfg QueueConfig) *Dispatcher {
	d := &Dispatcher{
		validate: validator.New(),
		logger:   cfg.Logger,
		handlers: map[string]Handler{},
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.queue = NewQueue(name, d.route, cfg)
	return d
}

// Register binds a handler to a job type. Registering twice replaces the
// previous handler.
func (d *Dispatcher) Register(jobType string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[jobType] = handler
}

// Start begins queue consumption.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Depth reports the number of jobs waiting in the queue buffer.
func (d *Dispatcher) Depth() int {
	return d.queue.Depth()
}

// Enqueue validates the payload schema and submits the job.
func (d *Dispatcher) Enqueue(jobType string, payload interface{}) error {
	d.mu.RLock()
	_, known := d.handlers[jobType]
	d.mu.RUnlock()
	if !known {
		return fmt.Errorf("no handler registered for job type %s", jobType)
	}

	if payload != nil && isStructLike(payload) {
		if err := d.validate.Struct(payload); err != nil {
			return fmt.Errorf("invalid payload for job %s: %w", jobType, err)
		}
	}

	return d.queue.Enqueue(Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
}

func (d *Dispatcher) route(ctx context.Context, job Job) error {
	d.mu.RLock()
	handler, ok := d.handlers[job.Type]
	d.mu.RUnlock()
	if !ok {
		d.logger.Sugar().Errorw("dropping job with unknown type", "job_id", job.ID, "type", job.Type)
		return nil
	}
	return handler(ctx, job)
}

func isStructLike(payload interface{}) bool {
	t := reflect.TypeOf(payload)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
