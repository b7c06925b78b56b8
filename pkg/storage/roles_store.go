package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrViewExists is returned when a role menu is already bound to the message.
var ErrViewExists = errors.New("a role menu already exists for this message")

// RoleMenuView is one row of roles_view.
type RoleMenuView struct {
	ViewID    int64
	GuildID   string
	ChannelID string
	MessageID string
	ViewType  string
	CreatedAt time.Time
}

// RoleMenuComponent maps a control name of a view to its persisted custom id.
type RoleMenuComponent struct {
	ComponentID string
	Name        string
	ViewID      int64
}

// SaveView inserts a view row and returns its generated id.
func (s *Store) SaveView(ctx context.Context, v RoleMenuView) (int64, error) {
	if s.db == nil {
		return 0, ErrNotInitialized
	}
	return insertView(ctx, s.db, v)
}

// SaveComponents inserts component rows for an existing view.
func (s *Store) SaveComponents(ctx context.Context, viewID int64, components []RoleMenuComponent) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	return insertComponents(ctx, s.db, viewID, components)
}

// SaveRoles binds roles to an existing view. Duplicates are not rejected.
func (s *Store) SaveRoles(ctx context.Context, viewID int64, roleIDs []string) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	return insertBindings(ctx, s.db, viewID, roleIDs)
}

// CreateRoleMenu writes a view, its components and its role bindings in one
// transaction. Nothing is written when any step fails.
func (s *Store) CreateRoleMenu(ctx context.Context, v RoleMenuView, components []RoleMenuComponent, roleIDs []string) (int64, error) {
	var viewID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := insertView(ctx, tx, v)
		if err != nil {
			return err
		}
		if err := insertComponents(ctx, tx, id, components); err != nil {
			return err
		}
		if err := insertBindings(ctx, tx, id, roleIDs); err != nil {
			return err
		}
		viewID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return viewID, nil
}

func insertView(ctx context.Context, q dbtx, v RoleMenuView) (int64, error) {
	if v.MessageID == "" || v.GuildID == "" {
		return 0, fmt.Errorf("save view: guild and message ids are required")
	}
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO roles_view (guild_id, channel_id, message_id, view_type, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.GuildID, v.ChannelID, v.MessageID, v.ViewType, createdAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("save view for message %s: %w: %w", v.MessageID, ErrViewExists, err)
		}
		return 0, fmt.Errorf("save view for message %s: %w", v.MessageID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save view for message %s: %w", v.MessageID, err)
	}
	return id, nil
}

func insertComponents(ctx context.Context, q dbtx, viewID int64, components []RoleMenuComponent) error {
	for _, c := range components {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO roles_component (component_id, name, view_id) VALUES (?, ?, ?)`,
			c.ComponentID, c.Name, viewID,
		); err != nil {
			return fmt.Errorf("save component %s of view %d: %w", c.Name, viewID, err)
		}
	}
	return nil
}

func insertBindings(ctx context.Context, q dbtx, viewID int64, roleIDs []string) error {
	for _, roleID := range roleIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO roles_binding (role_id, view_id) VALUES (?, ?)`,
			roleID, viewID,
		); err != nil {
			return fmt.Errorf("save role %s for view %d: %w", roleID, viewID, err)
		}
	}
	return nil
}

// GetAllViews returns every persisted view ordered by id.
func (s *Store) GetAllViews(ctx context.Context) ([]RoleMenuView, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT view_id, guild_id, channel_id, message_id, view_type, created_at FROM roles_view ORDER BY view_id`)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	var out []RoleMenuView
	for rows.Next() {
		var v RoleMenuView
		if err := rows.Scan(&v.ViewID, &v.GuildID, &v.ChannelID, &v.MessageID, &v.ViewType, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetViewByMessage returns the view bound to messageID, or (nil, nil) when none.
func (s *Store) GetViewByMessage(ctx context.Context, messageID string) (*RoleMenuView, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.getView(ctx, `WHERE message_id = ?`, messageID)
}

// GetViewByID returns the view with the given id, or (nil, nil) when none.
func (s *Store) GetViewByID(ctx context.Context, viewID int64) (*RoleMenuView, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.getView(ctx, `WHERE view_id = ?`, viewID)
}

func (s *Store) getView(ctx context.Context, where string, arg any) (*RoleMenuView, error) {
	var v RoleMenuView
	err := s.db.QueryRowContext(ctx,
		`SELECT view_id, guild_id, channel_id, message_id, view_type, created_at FROM roles_view `+where, arg,
	).Scan(&v.ViewID, &v.GuildID, &v.ChannelID, &v.MessageID, &v.ViewType, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get view: %w", err)
	}
	return &v, nil
}

// GetRoles returns the role ids bound to a view in insertion order.
func (s *Store) GetRoles(ctx context.Context, viewID int64) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role_id FROM roles_binding WHERE view_id = ? ORDER BY rowid`, viewID)
	if err != nil {
		return nil, fmt.Errorf("get roles of view %d: %w", viewID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetComponents returns the persisted controls of a view.
func (s *Store) GetComponents(ctx context.Context, viewID int64) ([]RoleMenuComponent, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT component_id, name, view_id FROM roles_component WHERE view_id = ? ORDER BY rowid`, viewID)
	if err != nil {
		return nil, fmt.Errorf("get components of view %d: %w", viewID, err)
	}
	defer rows.Close()

	var out []RoleMenuComponent
	for rows.Next() {
		var c RoleMenuComponent
		if err := rows.Scan(&c.ComponentID, &c.Name, &c.ViewID); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RoleBinding names one (role, view) pair.
type RoleBinding struct {
	RoleID string
	ViewID int64
}

// DeleteRoles removes every binding matching one of the given (role, view)
// pairs in one transaction and returns how many rows were removed.
func (s *Store) DeleteRoles(ctx context.Context, bindings []RoleBinding) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM roles_binding WHERE role_id = ? AND view_id = ?`)
		if err != nil {
			return fmt.Errorf("prepare delete roles: %w", err)
		}
		defer stmt.Close()

		for _, b := range bindings {
			res, err := stmt.ExecContext(ctx, b.RoleID, b.ViewID)
			if err != nil {
				return fmt.Errorf("delete role %s from view %d: %w", b.RoleID, b.ViewID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DeleteView removes a view; components and bindings go with it.
func (s *Store) DeleteView(ctx context.Context, viewID int64) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles_view WHERE view_id = ?`, viewID); err != nil {
		return fmt.Errorf("delete view %d: %w", viewID, err)
	}
	return nil
}
