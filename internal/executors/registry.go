package executors

import (
	"sort"

	"task-scheduler-service/internal/models"
)

// Registry maps task types to executors. It is assembled once during
// process wiring and read-only afterwards; there is no runtime discovery.
type Registry struct {
	executors map[models.TaskType]Executor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[models.TaskType]Executor)}
}

// Register binds an executor under its native task type.
func (r *Registry) Register(executor Executor) {
	r.executors[executor.TaskType()] = executor
}

// RegisterAs binds an executor under an extra task type. MANUAL tasks share
// the common executor this way.
func (r *Registry) RegisterAs(taskType models.TaskType, executor Executor) {
	r.executors[taskType] = executor
}

// Get resolves the executor for a task type.
func (r *Registry) Get(taskType models.TaskType) (Executor, error) {
	executor, exists := r.executors[taskType]
	if !exists {
		return nil, models.NewNotFoundError("executor", string(taskType))
	}
	return executor, nil
}

// Types lists the registered task types, sorted for stable logging.
func (r *Registry) Types() []models.TaskType {
	types := make([]models.TaskType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
