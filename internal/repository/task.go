package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/todoshare/internal/domain"
)

const taskColumns = `id, user_id, title, completed, due_date, shared_with, created_at`

// listVisibleQuery uses containment so todos_shared_with_idx can serve it.
const listVisibleQuery = `SELECT ` + taskColumns + ` FROM todos
	WHERE user_id = $1 OR shared_with @> ARRAY[$1::uuid]
	ORDER BY created_at DESC`

// TaskRepository handles todo data access.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListVisible returns every task owned by or shared with the identity, newest first.
func (r *TaskRepository) ListVisible(ctx context.Context, identityID string) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := conn(ctx, r.db).SelectContext(ctx, &tasks, listVisibleQuery, identityID)
	if err != nil {
		return nil, translate(err, "list tasks for %s", identityID)
	}
	return tasks, nil
}

// FindByID retrieves a task by id.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := conn(ctx, r.db).GetContext(ctx, &task,
		`SELECT `+taskColumns+` FROM todos WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "find task %s", id)
	}
	return &task, nil
}

// FindForUpdate reads a task and locks its row until the surrounding
// transaction ends.
func (r *TaskRepository) FindForUpdate(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := conn(ctx, r.db).GetContext(ctx, &task,
		`SELECT `+taskColumns+` FROM todos WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, translate(err, "lock task %s", id)
	}
	return &task, nil
}

// Create inserts a task with completed=false and nobody shared.
func (r *TaskRepository) Create(ctx context.Context, task domain.Task) (*domain.Task, error) {
	var result domain.Task
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`INSERT INTO todos (user_id, title, due_date)
		 VALUES ($1, $2, $3)
		 RETURNING `+taskColumns,
		task.UserID, task.Title, dateArg(task.DueDate),
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "create task")
	}
	return &result, nil
}

// SetCompleted sets the completion flag by id.
func (r *TaskRepository) SetCompleted(ctx context.Context, id string, completed bool) (*domain.Task, error) {
	var result domain.Task
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`UPDATE todos SET completed = $2 WHERE id = $1
		 RETURNING `+taskColumns,
		id, completed,
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "set completed on task %s", id)
	}
	return &result, nil
}

// Update replaces both the title and the due date.
func (r *TaskRepository) Update(ctx context.Context, id, title string, dueDate *domain.Date) (*domain.Task, error) {
	var result domain.Task
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`UPDATE todos SET title = $2, due_date = $3 WHERE id = $1
		 RETURNING `+taskColumns,
		id, title, dateArg(dueDate),
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "update task %s", id)
	}
	return &result, nil
}

// Delete removes a task and returns the row as it was.
func (r *TaskRepository) Delete(ctx context.Context, id string) (*domain.Task, error) {
	var result domain.Task
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`DELETE FROM todos WHERE id = $1
		 RETURNING `+taskColumns, id,
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "delete task %s", id)
	}
	return &result, nil
}

// AddShare appends identityID to shared_with unless it is already present.
// The check and the append happen in one statement, so concurrent callers
// cannot overwrite each other. added is false when the id was already there.
func (r *TaskRepository) AddShare(ctx context.Context, id, identityID string) (task *domain.Task, added bool, err error) {
	var result domain.Task
	err = conn(ctx, r.db).QueryRowxContext(ctx,
		`UPDATE todos SET shared_with = array_append(shared_with, $2::uuid)
		 WHERE id = $1 AND NOT shared_with @> ARRAY[$2::uuid]
		 RETURNING `+taskColumns,
		id, identityID,
	).StructScan(&result)
	if err == nil {
		return &result, true, nil
	}

	if !isNotFound(err) {
		return nil, false, translate(err, "share task %s", id)
	}

	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
