package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/taskflow/internal/app"
	"github.com/hylla/taskflow/internal/domain"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// busyTimeoutMS bounds how long a writer waits for the database lock before failing with BUSY.
const busyTimeoutMS = 5000

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

var (
	_ app.Repository = (*Repository)(nil)
	_ app.Tx         = (*txRepo)(nil)
)

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)",
		path, busyTimeoutMS,
	)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database; every call gets a fresh one.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		uuid.NewString(), busyTimeoutMS,
	)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// The database lives as long as one connection holds it open.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database handle is usable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			avatar TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '#3B82F6',
			owner_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'MEMBER',
			joined_at TEXT NOT NULL,
			PRIMARY KEY(project_id, user_id),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE(project_id, name),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'TODO',
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'MEDIUM',
			due_at TEXT,
			assignee_id TEXT NOT NULL DEFAULT '',
			creator_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		// Not unique: range shifts rewrite one row at a time and pass through duplicates.
		`CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(project_id, status, position);`,
		`CREATE TABLE IF NOT EXISTS task_tags (
			task_id TEXT NOT NULL,
			tag_id TEXT NOT NULL,
			PRIMARY KEY(task_id, tag_id),
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY(tag_id) REFERENCES tags(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			task_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_project ON activities(project_id, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	// Databases created before soft delete lack projects.status.
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE projects ADD COLUMN status TEXT NOT NULL DEFAULT 'ACTIVE'`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate sqlite add projects.status: %w", err)
	}
	return nil
}

// HasProjectAccess reports whether userID owns or belongs to the live project.
func (r *Repository) HasProjectAccess(ctx context.Context, projectID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM projects p
			WHERE p.id = ?
				AND p.status <> ?
				AND (p.owner_id = ?
					OR EXISTS(SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?))
		)
	`, projectID, string(domain.ProjectDeleted), userID, userID).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// CreateUser creates user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, name, email, avatar, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Avatar, ts(u.CreatedAt))
	return classifyErr(err)
}

// GetUser returns user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, avatar, created_at
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user registered with email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, avatar, created_at
		FROM users
		WHERE email = ?
	`, email)
	return scanUser(row)
}

// CreateProject stores a project together with its owner membership.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project, owner domain.Member) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects(id, name, description, color, owner_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.Color, p.OwnerID, string(projectStatus(p.Status)), ts(p.CreatedAt), ts(p.UpdatedAt))
	if err != nil {
		return classifyErr(err)
	}
	if err = insertMember(ctx, tx, owner); err != nil {
		return err
	}
	return classifyErr(tx.Commit())
}

// GetProject returns a live project; soft-deleted projects read as missing.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		WHERE p.id = ? AND p.status <> ?
	`, id, string(domain.ProjectDeleted))
	return scanProject(row)
}

// ListProjectsForUser lists live projects the user owns or is a member of, most
// recently updated first, optionally filtered by a case-insensitive name substring.
func (r *Repository) ListProjectsForUser(ctx context.Context, userID, search string) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		WHERE p.status <> ?
			AND (p.owner_id = ?
				OR EXISTS(SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?))
			AND (? = '' OR instr(lower(p.name), lower(?)) > 0)
		ORDER BY p.updated_at DESC, p.id ASC
	`, string(domain.ProjectDeleted), userID, userID, search, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProject persists name, description, color and status.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, description = ?, color = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, p.Color, string(projectStatus(p.Status)), ts(p.UpdatedAt), p.ID)
	if err != nil {
		return classifyErr(err)
	}
	return translateNoRows(res)
}

// AddMember adds a membership; an existing one is left untouched and reported
// as app.ErrAlreadyMember.
func (r *Repository) AddMember(ctx context.Context, m domain.Member) error {
	if _, err := r.GetProject(ctx, m.ProjectID); err != nil {
		return err
	}
	return insertMember(ctx, r.db, m)
}

// ListMembers lists a project's memberships with member profiles, owner first.
func (r *Repository) ListMembers(ctx context.Context, projectID string) ([]app.MemberView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.project_id, m.user_id, m.role, m.joined_at, `+userJoinColumns("u")+`
		FROM project_members m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ?
		ORDER BY m.role <> ? ASC, m.joined_at ASC, m.user_id ASC
	`, projectID, string(domain.RoleOwner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.MemberView, 0)
	for rows.Next() {
		var (
			view      app.MemberView
			roleRaw   string
			joinedRaw string
			user      joinedUser
		)
		if err := rows.Scan(append([]any{&view.ProjectID, &view.UserID, &roleRaw, &joinedRaw}, user.dest()...)...); err != nil {
			return nil, err
		}
		view.Role = domain.MemberRole(roleRaw)
		view.JoinedAt = parseTS(joinedRaw)
		view.User = user.user()
		out = append(out, view)
	}
	return out, rows.Err()
}

// CreateTag creates tag.
func (r *Repository) CreateTag(ctx context.Context, tag domain.Tag) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tags(id, project_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, tag.ID, tag.ProjectID, tag.Name, tag.Color, ts(tag.CreatedAt))
	return classifyErr(err)
}

// ListTags lists tags.
func (r *Repository) ListTags(ctx context.Context, projectID string) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, name, color, created_at
		FROM tags
		WHERE project_id = ?
		ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Tag, 0)
	for rows.Next() {
		var (
			tag        domain.Tag
			createdRaw string
		)
		if err := rows.Scan(&tag.ID, &tag.ProjectID, &tag.Name, &tag.Color, &createdRaw); err != nil {
			return nil, err
		}
		tag.CreatedAt = parseTS(createdRaw)
		out = append(out, tag)
	}
	return out, rows.Err()
}

// GetTask returns task.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, r.db, id)
}

// GetTaskView returns one task with assignee and tags.
func (r *Repository) GetTaskView(ctx context.Context, id string) (app.TaskView, error) {
	views, err := queryTaskViews(ctx, r.db, "t.id = ?", id)
	if err != nil {
		return app.TaskView{}, err
	}
	if len(views) == 0 {
		return app.TaskView{}, app.ErrNotFound
	}
	return views[0], nil
}

// ListTaskViews lists a project's tasks with assignee and tags.
func (r *Repository) ListTaskViews(ctx context.Context, projectID string) ([]app.TaskView, error) {
	return queryTaskViews(ctx, r.db, "t.project_id = ?", projectID)
}

// ListActivity lists the newest activity entries of a project.
func (r *Repository) ListActivity(ctx context.Context, projectID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, task_id, user_id, type, description, metadata_json, created_at
		FROM activities
		WHERE project_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Activity, 0)
	for rows.Next() {
		var (
			entry       domain.Activity
			typeRaw     string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.TaskID, &entry.UserID, &typeRaw, &entry.Description, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		entry.Type = domain.ActivityType(typeRaw)
		entry.CreatedAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode activities.metadata_json: %w", err)
		}
		if entry.Metadata == nil {
			entry.Metadata = map[string]string{}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// WithinTx runs fn in one immediate transaction, so the write lock is held from BEGIN.
// Lock contention is reported as app.ErrConflict.
func (r *Repository) WithinTx(ctx context.Context, fn func(context.Context, app.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &txRepo{tx: tx}); err != nil {
		return classifyErr(err)
	}
	if err = tx.Commit(); err != nil {
		return classifyErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// txRepo implements app.Tx on one open transaction.
type txRepo struct {
	tx *sql.Tx
}

// GetTask returns task.
func (t *txRepo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTaskByID(ctx, t.tx, id)
}

// ListTasks lists every task of a project.
func (t *txRepo) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.project_id = ?
		ORDER BY t.status ASC, t.position ASC, t.created_at ASC, t.id ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// CountColumn counts column.
func (t *txRepo) CountColumn(ctx context.Context, projectID string, status domain.Status, excludeTaskID string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM tasks
		WHERE project_id = ? AND status = ? AND id <> ?
	`, projectID, string(status), excludeTaskID).Scan(&count)
	return count, err
}

// CreateTask creates task.
func (t *txRepo) CreateTask(ctx context.Context, task domain.Task) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO tasks(id, project_id, status, position, title, description, priority, due_at, assignee_id, creator_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.ProjectID,
		string(task.Status),
		task.Position,
		task.Title,
		task.Description,
		string(task.Priority),
		nullableTS(task.DueAt),
		task.AssigneeID,
		task.CreatorID,
		ts(task.CreatedAt),
		ts(task.UpdatedAt),
	)
	if err != nil {
		return classifyErr(err)
	}
	for _, tagID := range task.TagIDs {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO task_tags(task_id, tag_id) VALUES (?, ?)`, task.ID, tagID); err != nil {
			return fmt.Errorf("link tag %s: %w", tagID, classifyErr(err))
		}
	}
	return nil
}

// UpdateTaskDetails updates every task field except status and position.
func (t *txRepo) UpdateTaskDetails(ctx context.Context, task domain.Task) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, due_at = ?, assignee_id = ?, updated_at = ?
		WHERE id = ?
	`,
		task.Title,
		task.Description,
		string(task.Priority),
		nullableTS(task.DueAt),
		task.AssigneeID,
		ts(task.UpdatedAt),
		task.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// ShiftPositions applies one range shift as a single bulk update.
func (t *txRepo) ShiftPositions(ctx context.Context, projectID, excludeTaskID string, shift domain.Shift) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tasks
		SET position = position + ?
		WHERE project_id = ?
			AND status = ?
			AND position >= ?
			AND (? < 0 OR position <= ?)
			AND id <> ?
	`, shift.Delta, projectID, string(shift.Status), shift.From, shift.To, shift.To, excludeTaskID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetTaskSlot moves one task only while it still sits at expected.
func (t *txRepo) SetTaskSlot(ctx context.Context, taskID string, expected, next domain.Slot, updatedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, position = ?, updated_at = ?
		WHERE id = ? AND status = ? AND position = ?
	`, string(next.Status), next.Position, ts(updatedAt), taskID, string(expected.Status), expected.Position)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task %s left %s/%d: %w", taskID, expected.Status, expected.Position, app.ErrConflict)
	}
	return nil
}

// DeleteTask deletes task.
func (t *txRepo) DeleteTask(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// InsertActivity inserts an activity-log record.
func (t *txRepo) InsertActivity(ctx context.Context, entry domain.Activity) error {
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode activity metadata: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO activities(project_id, task_id, user_id, type, description, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ProjectID,
		entry.TaskID,
		entry.UserID,
		string(entry.Type),
		entry.Description,
		string(metadataJSON),
		ts(normalizeEventTS(entry.CreatedAt)),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// projectColumns lists project columns in scanProject order; queries alias projects as p.
const projectColumns = `p.id, p.name, p.description, p.color, p.owner_id, p.status, p.created_at, p.updated_at`

// userJoinColumns lists the columns of a LEFT JOINed users alias in joinedUser order.
func userJoinColumns(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.name, %[1]s.email, %[1]s.avatar, %[1]s.created_at", alias)
}

// joinedUser scans the nullable columns of a LEFT JOINed user row.
type joinedUser struct {
	id, name, email, avatar, created sql.NullString
}

// dest returns scan destinations in userJoinColumns order.
func (u *joinedUser) dest() []any {
	return []any{&u.id, &u.name, &u.email, &u.avatar, &u.created}
}

// user returns the joined user, or nil when the join found no row.
func (u *joinedUser) user() *domain.User {
	if !u.id.Valid {
		return nil
	}
	return &domain.User{
		ID:        u.id.String,
		Name:      u.name.String,
		Email:     u.email.String,
		Avatar:    u.avatar.String,
		CreatedAt: parseTS(u.created.String),
	}
}

// taskColumns lists task columns in scanTask order; queries alias tasks as t.
const taskColumns = `t.id, t.project_id, t.status, t.position, t.title, t.description, t.priority, t.due_at, t.assignee_id, t.creator_id, t.created_at, t.updated_at`

// queryer represents a query-only DB contract used by DB and Tx implementations.
type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// getTaskByID returns a task with its tag ids.
func getTaskByID(ctx context.Context, q queryer, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.id = ?
	`, id)
	task, err := scanTask(row)
	if err != nil {
		return domain.Task{}, err
	}
	tags, err := queryTaskTags(ctx, q, "tt.task_id = ?", id)
	if err != nil {
		return domain.Task{}, err
	}
	task.TagIDs = tagIDs(tags[task.ID])
	return task, nil
}

// queryTaskViews loads tasks matching filter with their assignee, creator and tags.
func queryTaskViews(ctx context.Context, q queryer, filter string, arg any) ([]app.TaskView, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+taskColumns+`, `+userJoinColumns("a")+`, `+userJoinColumns("c")+`
		FROM tasks t
		LEFT JOIN users a ON a.id = t.assignee_id
		LEFT JOIN users c ON c.id = t.creator_id
		WHERE `+filter+`
		ORDER BY t.position ASC, t.created_at ASC, t.id ASC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.TaskView, 0)
	for rows.Next() {
		view, err := scanTaskView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	tags, err := queryTaskTags(ctx, q, filter, arg)
	if err != nil {
		return nil, err
	}
	for idx := range out {
		out[idx].Tags = tags[out[idx].ID]
		if out[idx].Tags == nil {
			out[idx].Tags = []domain.Tag{}
		}
		out[idx].TagIDs = tagIDs(out[idx].Tags)
	}
	return out, nil
}

// queryTaskTags loads tags per task id for tasks matching filter.
func queryTaskTags(ctx context.Context, q queryer, filter string, arg any) (map[string][]domain.Tag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tt.task_id, g.id, g.project_id, g.name, g.color, g.created_at
		FROM task_tags tt
		JOIN tags g ON g.id = tt.tag_id
		JOIN tasks t ON t.id = tt.task_id
		WHERE `+filter+`
		ORDER BY g.name ASC
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]domain.Tag{}
	for rows.Next() {
		var (
			taskID     string
			tag        domain.Tag
			createdRaw string
		)
		if err := rows.Scan(&taskID, &tag.ID, &tag.ProjectID, &tag.Name, &tag.Color, &createdRaw); err != nil {
			return nil, err
		}
		tag.CreatedAt = parseTS(createdRaw)
		out[taskID] = append(out[taskID], tag)
	}
	return out, rows.Err()
}

// insertMember inserts a membership, failing with app.ErrAlreadyMember when one exists.
func insertMember(ctx context.Context, execer execerContext, m domain.Member) error {
	res, err := execer.ExecContext(ctx, `
		INSERT INTO project_members(project_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, user_id) DO NOTHING
	`, m.ProjectID, m.UserID, string(m.Role), ts(m.JoinedAt))
	if err != nil {
		return fmt.Errorf("insert member: %w", classifyErr(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %s of project %s: %w", m.UserID, m.ProjectID, app.ErrAlreadyMember)
	}
	return nil
}

// scanUser handles scan user.
func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		createdRaw string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Avatar, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	u.CreatedAt = parseTS(createdRaw)
	return u, nil
}

// scanProject handles scan project.
func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		statusRaw  string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.OwnerID, &statusRaw, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	p.Status = domain.ProjectStatus(statusRaw)
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

// projectStatus defaults an unset status to active.
func projectStatus(status domain.ProjectStatus) domain.ProjectStatus {
	if status == "" {
		return domain.ProjectActive
	}
	return status
}

// scanTask handles scan task.
func scanTask(s scanner) (domain.Task, error) {
	var (
		t           domain.Task
		statusRaw   string
		priorityRaw string
		dueRaw      sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := s.Scan(
		&t.ID,
		&t.ProjectID,
		&statusRaw,
		&t.Position,
		&t.Title,
		&t.Description,
		&priorityRaw,
		&dueRaw,
		&t.AssigneeID,
		&t.CreatorID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Status = domain.Status(statusRaw)
	t.Priority = domain.Priority(priorityRaw)
	t.DueAt = parseNullTS(dueRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	t.TagIDs = []string{}
	return t, nil
}

// scanTaskView scans a task row joined with its optional assignee and creator.
func scanTaskView(s scanner) (app.TaskView, error) {
	var (
		t           domain.Task
		statusRaw   string
		priorityRaw string
		dueRaw      sql.NullString
		createdRaw  string
		updatedRaw  string
		assignee    joinedUser
		creator     joinedUser
	)
	dest := []any{
		&t.ID,
		&t.ProjectID,
		&statusRaw,
		&t.Position,
		&t.Title,
		&t.Description,
		&priorityRaw,
		&dueRaw,
		&t.AssigneeID,
		&t.CreatorID,
		&createdRaw,
		&updatedRaw,
	}
	dest = append(dest, assignee.dest()...)
	dest = append(dest, creator.dest()...)
	if err := s.Scan(dest...); err != nil {
		return app.TaskView{}, err
	}
	t.Status = domain.Status(statusRaw)
	t.Priority = domain.Priority(priorityRaw)
	t.DueAt = parseNullTS(dueRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)

	return app.TaskView{
		Task:     t,
		Assignee: assignee.user(),
		Creator:  creator.user(),
		Tags:     []domain.Tag{},
	}, nil
}

// tagIDs returns the ids of tags.
func tagIDs(tags []domain.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.ID)
	}
	return out
}

// classifyErr maps lock contention and uniqueness violations to app.ErrConflict.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, app.ErrConflict) {
		return err
	}
	var sqliteErr *sqlitedrv.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", app.ErrConflict, err)
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", app.ErrConflict, err)
	}
	return err
}

// isDuplicateColumnErr reports whether an ALTER TABLE added an existing column.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

// translateNoRows maps zero affected rows to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// normalizeEventTS stamps zero timestamps with the current time.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
