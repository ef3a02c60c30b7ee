package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/util"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// CreateOfficer inserts the officer's login user and officer row in one
// transaction. A taken email or employee id is ErrDuplicate.
func (s *PostgresStore) CreateOfficer(ctx context.Context, o NewOfficer) (lifecycle.Officer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lifecycle.Officer{}, fmt.Errorf("begin create officer tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	userID := util.NewID("usr")
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, role)
		VALUES ($1, $2, LOWER($3), $4, $5, $6)
	`, userID, o.Name, o.Email, o.Phone, o.PasswordHash, string(rbac.RoleOfficer)); err != nil {
		if isUniqueViolation(err) {
			return lifecycle.Officer{}, fmt.Errorf("insert officer user %s: %w", o.Email, ErrDuplicate)
		}
		return lifecycle.Officer{}, fmt.Errorf("insert officer user: %w", err)
	}

	officerID := util.NewSortableID()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO officers (id, user_id, employee_id, designation, department_id, ward, zone, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`, officerID, userID, o.EmployeeID, o.Designation, o.DepartmentID, o.Ward, o.Zone, string(o.Status)); err != nil {
		if isUniqueViolation(err) {
			return lifecycle.Officer{}, fmt.Errorf("insert officer %s: %w", o.EmployeeID, ErrDuplicate)
		}
		return lifecycle.Officer{}, fmt.Errorf("insert officer: %w", err)
	}

	officer, err := scanOfficer(tx.QueryRowContext(ctx, `
		SELECT `+officerColumns+` FROM officers o JOIN users u ON u.id = o.user_id WHERE o.id=$1
	`, officerID))
	if err != nil {
		return lifecycle.Officer{}, fmt.Errorf("read back officer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return lifecycle.Officer{}, fmt.Errorf("commit create officer: %w", err)
	}
	return officer, nil
}

// UpdateOfficer applies the non-nil fields of c. Name, email and phone live
// on the officer's user row.
func (s *PostgresStore) UpdateOfficer(ctx context.Context, id string, c OfficerChanges) (lifecycle.Officer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lifecycle.Officer{}, fmt.Errorf("begin update officer tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status *string
	if c.Status != nil {
		value := string(*c.Status)
		status = &value
	}
	var userID string
	err = tx.QueryRowContext(ctx, `
		UPDATE officers SET
			designation = COALESCE($2, designation),
			ward = COALESCE($3, ward),
			zone = COALESCE($4, zone),
			status = COALESCE($5, status)
		WHERE id = $1
		RETURNING user_id
	`, id, c.Designation, c.Ward, c.Zone, status).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.Officer{}, fmt.Errorf("officer %s: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		return lifecycle.Officer{}, fmt.Errorf("update officer: %w", err)
	}

	if c.Name != nil || c.Email != nil || c.Phone != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET
				name = COALESCE($2, name),
				email = COALESCE(LOWER($3), email),
				phone = COALESCE($4, phone)
			WHERE id = $1
		`, userID, c.Name, c.Email, c.Phone); err != nil {
			if isUniqueViolation(err) {
				return lifecycle.Officer{}, fmt.Errorf("update officer user: %w", ErrDuplicate)
			}
			return lifecycle.Officer{}, fmt.Errorf("update officer user: %w", err)
		}
	}

	officer, err := scanOfficer(tx.QueryRowContext(ctx, `
		SELECT `+officerColumns+` FROM officers o JOIN users u ON u.id = o.user_id WHERE o.id=$1
	`, id))
	if err != nil {
		return lifecycle.Officer{}, fmt.Errorf("read back officer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return lifecycle.Officer{}, fmt.Errorf("commit update officer: %w", err)
	}
	return officer, nil
}

// ListAdminAudit returns admin audit rows newest first.
func (s *PostgresStore) ListAdminAudit(ctx context.Context, q AdminAuditQuery) ([]AdminAuditEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, action, target_resource, target_id, ip_address, created_at
		FROM admin_audit
		WHERE ($1 = '' OR starts_with(action, $1))
			AND ($2 = '' OR actor_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, q.Action, q.ActorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list admin audit: %w", err)
	}
	defer rows.Close()

	items := make([]AdminAuditEntry, 0)
	for rows.Next() {
		var e AdminAuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetResource, &e.TargetID, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin audit: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin audit: %w", err)
	}
	return items, nil
}
