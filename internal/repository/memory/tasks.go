package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/sumire/todoshare/internal/domain"
)

// Tasks is the in-memory todo collection.
type Tasks struct {
	s *Store
}

// ListVisible returns every task owned by or shared with the identity, newest first.
func (t *Tasks) ListVisible(ctx context.Context, identityID string) ([]domain.Task, error) {
	defer t.s.lock(ctx)()
	var recs []*taskRecord
	for _, rec := range t.s.tasks {
		if rec.task.VisibleTo(identityID) {
			recs = append(recs, rec)
		}
	}
	sortNewestFirst(recs, func(r *taskRecord) (int64, int64) { return r.task.CreatedAt.UnixNano(), r.seq })

	tasks := make([]domain.Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, cloneTask(rec.task))
	}
	return tasks, nil
}

// FindByID returns the task or domain.ErrNotFound.
func (t *Tasks) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	defer t.s.lock(ctx)()
	return t.get(id)
}

// FindForUpdate is FindByID; WithinTx already serializes the store.
func (t *Tasks) FindForUpdate(ctx context.Context, id string) (*domain.Task, error) {
	return t.FindByID(ctx, id)
}

func (t *Tasks) get(id string) (*domain.Task, error) {
	rec, ok := t.s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	task := cloneTask(rec.task)
	return &task, nil
}

// Create stores a new task with no recipients.
func (t *Tasks) Create(ctx context.Context, task domain.Task) (*domain.Task, error) {
	defer t.s.lock(ctx)()
	seq, now := t.s.next()
	task.ID = newID()
	task.Completed = false
	task.SharedWith = domain.IDList{}
	task.CreatedAt = now
	t.s.tasks[task.ID] = &taskRecord{seq: seq, task: cloneTask(task)}
	return &task, nil
}

// SetCompleted sets the completed flag.
func (t *Tasks) SetCompleted(ctx context.Context, id string, completed bool) (*domain.Task, error) {
	defer t.s.lock(ctx)()
	rec, ok := t.s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.task.Completed = completed
	return t.get(id)
}

// Update replaces the title and due date.
func (t *Tasks) Update(ctx context.Context, id, title string, dueDate *domain.Date) (*domain.Task, error) {
	defer t.s.lock(ctx)()
	rec, ok := t.s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.task.Title = title
	rec.task.DueDate = nil
	if dueDate != nil {
		d := *dueDate
		rec.task.DueDate = &d
	}
	return t.get(id)
}

// Delete removes the task and returns the removed row.
func (t *Tasks) Delete(ctx context.Context, id string) (*domain.Task, error) {
	defer t.s.lock(ctx)()
	task, err := t.get(id)
	if err != nil {
		return nil, err
	}
	delete(t.s.tasks, id)
	return task, nil
}

// AddShare appends identityID to shared_with unless it is already present.
func (t *Tasks) AddShare(ctx context.Context, id, identityID string) (*domain.Task, bool, error) {
	defer t.s.lock(ctx)()
	rec, ok := t.s.tasks[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	added := !rec.task.SharedWith.Contains(identityID)
	if added {
		rec.task.SharedWith = rec.task.SharedWith.With(identityID)
	}
	task, err := t.get(id)
	return task, added, err
}

// sortNewestFirst orders by timestamp descending, breaking ties by insertion
// order so records created within one clock tick still sort newest first.
func sortNewestFirst[T any](recs []T, key func(T) (int64, int64)) {
	slices.SortFunc(recs, func(a, b T) int {
		at, aseq := key(a)
		bt, bseq := key(b)
		if c := cmp.Compare(bt, at); c != 0 {
			return c
		}
		return cmp.Compare(bseq, aseq)
	})
}
