package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/util"
)

var ErrDuplicate = errors.New("already exists")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, name, email, phone, password_hash, role, COALESCE(google_sub, ''), created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var (
		user User
		role string
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.PasswordHash, &role, &user.GoogleSub, &user.CreatedAt); err != nil {
		return User{}, err
	}
	user.Role = rbac.Normalize(role)
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = util.NewID("usr")
	}
	if user.Role == "" {
		user.Role = rbac.RoleUser
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, role, google_sub)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, NULLIF($7, ''))
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.Phone, user.PasswordHash, string(user.Role), user.GoogleSub)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("insert user %s: %w", user.Email, ErrDuplicate)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, strings.TrimSpace(email)))
}

// EnsureGoogleUser links a verified Google subject to a citizen account,
// creating the account on first sign in.
func (s *PostgresStore) EnsureGoogleUser(ctx context.Context, subject, email, name string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET google_sub=$1
		WHERE email=LOWER($2) AND (google_sub IS NULL OR google_sub=$1)
		RETURNING `+userColumns, subject, email))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("link google user: %w", err)
	}
	return s.CreateUser(ctx, User{Name: name, Email: email, GoogleSub: subject, Role: rbac.RoleUser})
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

const officerColumns = `o.id, o.user_id, o.employee_id, u.name, u.email, o.designation, COALESCE(o.department_id, ''), o.ward, o.zone, o.status`

func scanOfficer(row interface{ Scan(...any) error }) (lifecycle.Officer, error) {
	var (
		officer lifecycle.Officer
		status  string
	)
	if err := row.Scan(&officer.ID, &officer.UserID, &officer.EmployeeID, &officer.Name, &officer.Email,
		&officer.Designation, &officer.DepartmentID, &officer.Ward, &officer.Zone, &status); err != nil {
		return lifecycle.Officer{}, err
	}
	officer.Status = lifecycle.OfficerStatus(status)
	return officer, nil
}

func (s *PostgresStore) GetOfficer(ctx context.Context, id string) (lifecycle.Officer, error) {
	officer, err := scanOfficer(s.db.QueryRowContext(ctx, `
		SELECT `+officerColumns+` FROM officers o JOIN users u ON u.id = o.user_id WHERE o.id=$1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.Officer{}, fmt.Errorf("officer %s: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		return lifecycle.Officer{}, fmt.Errorf("get officer: %w", err)
	}
	return officer, nil
}

func (s *PostgresStore) GetOfficerByUserID(ctx context.Context, userID string) (lifecycle.Officer, error) {
	return scanOfficer(s.db.QueryRowContext(ctx, `
		SELECT `+officerColumns+` FROM officers o JOIN users u ON u.id = o.user_id WHERE o.user_id=$1
	`, userID))
}

// GetOfficerLogin returns the officer with the given employee id together
// with the user row holding its password hash.
func (s *PostgresStore) GetOfficerLogin(ctx context.Context, employeeID string) (lifecycle.Officer, User, error) {
	officer, err := scanOfficer(s.db.QueryRowContext(ctx, `
		SELECT `+officerColumns+` FROM officers o JOIN users u ON u.id = o.user_id WHERE o.employee_id=$1
	`, strings.TrimSpace(employeeID)))
	if err != nil {
		return lifecycle.Officer{}, User{}, err
	}
	user, err := s.GetUserByID(ctx, officer.UserID)
	if err != nil {
		return lifecycle.Officer{}, User{}, fmt.Errorf("load officer user: %w", err)
	}
	return officer, user, nil
}

func (s *PostgresStore) ListOfficers(ctx context.Context) ([]lifecycle.Officer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+officerColumns+` FROM officers o JOIN users u ON u.id = o.user_id ORDER BY u.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list officers: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.Officer, 0)
	for rows.Next() {
		officer, err := scanOfficer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan officer: %w", err)
		}
		items = append(items, officer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate officers: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	items := make([]Department, 0)
	for rows.Next() {
		var item Department
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return items, nil
}

const grievanceColumns = `c.id, c.citizen_id, c.title, c.description, c.location, c.category, c.department, c.priority,
	c.created_at, COALESCE(c.assigned_officer_id, ''), c.assigned_at, COALESCE(c.sla_hours, 0), c.sla_deadline,
	c.reassignment_count, c.trust_score, c.trust_flags, c.is_women_safety, c.ai_confidence, c.ai_degraded`

func scanGrievance(row interface{ Scan(...any) error }, extra ...any) (lifecycle.Grievance, error) {
	var (
		g        lifecycle.Grievance
		priority string
		flags    []byte
	)
	dest := []any{&g.ID, &g.CitizenID, &g.Title, &g.Description, &g.Location, &g.Category, &g.Department, &priority,
		&g.CreatedAt, &g.AssignedOfficerID, &g.AssignedAt, &g.SLAHours, &g.SLADeadline,
		&g.ReassignmentCount, &g.TrustScore, &flags, &g.IsWomenSafety, &g.AIConfidence, &g.AIDegraded}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return lifecycle.Grievance{}, err
	}
	g.Priority = lifecycle.NormalizePriority(priority)
	g.TrustFlags = make([]string, 0)
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &g.TrustFlags); err != nil {
			return lifecycle.Grievance{}, fmt.Errorf("decode trust flags: %w", err)
		}
	}
	return g, nil
}

// CreateGrievance inserts the grievance and its SUBMITTED event together.
func (s *PostgresStore) CreateGrievance(ctx context.Context, g lifecycle.Grievance, submitted lifecycle.TimelineEvent) error {
	flags, err := json.Marshal(nonNil(g.TrustFlags))
	if err != nil {
		return fmt.Errorf("encode trust flags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create grievance tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO complaints (id, citizen_id, title, description, location, category, department, priority,
			created_at, trust_score, trust_flags, is_women_safety, ai_confidence, ai_degraded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13, $14)
	`, g.ID, g.CitizenID, g.Title, g.Description, g.Location, g.Category, g.Department, string(g.Priority),
		g.CreatedAt, g.TrustScore, string(flags), g.IsWomenSafety, g.AIConfidence, g.AIDegraded); err != nil {
		return fmt.Errorf("insert grievance: %w", err)
	}
	if err := insertEvent(ctx, tx, submitted); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create grievance: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGrievance(ctx context.Context, id string) (lifecycle.Grievance, error) {
	g, err := scanGrievance(s.db.QueryRowContext(ctx, `SELECT `+grievanceColumns+` FROM complaints c WHERE c.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.Grievance{}, fmt.Errorf("grievance %s: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		return lifecycle.Grievance{}, fmt.Errorf("get grievance: %w", err)
	}
	return g, nil
}

// ListGrievances returns one page of matching grievances newest first with
// Status set from each one's latest event. The other derived fields are left
// to the caller.
func (s *PostgresStore) ListGrievances(ctx context.Context, q GrievanceQuery) ([]lifecycle.Grievance, error) {
	limit := q.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(q.Offset, 0)
	breachedAsOf := sql.NullTime{Time: q.BreachedAsOf, Valid: !q.BreachedAsOf.IsZero()}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+grievanceColumns+`, COALESCE(latest.status, 'SUBMITTED')
		FROM complaints c
		LEFT JOIN LATERAL (
			SELECT te.status FROM timeline_events te
			WHERE te.complaint_id = c.id
			ORDER BY te.occurred_at DESC
			LIMIT 1
		) latest ON TRUE
		WHERE ($1 = '' OR c.citizen_id = $1)
			AND ($2 = '' OR c.assigned_officer_id = $2)
			AND (NOT $3 OR c.assigned_officer_id IS NULL)
			AND ($4::timestamptz IS NULL OR (
				c.sla_deadline < $4
				AND UPPER(COALESCE(latest.status, 'SUBMITTED')) NOT IN ('RESOLVED', 'VERIFIED', 'WITHDRAWN', 'REJECTED')
			))
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $5 OFFSET $6
	`, q.CitizenID, q.OfficerID, q.Unassigned, breachedAsOf, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list grievances: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.Grievance, 0)
	for rows.Next() {
		var status string
		g, err := scanGrievance(rows, &status)
		if err != nil {
			return nil, fmt.Errorf("scan grievance: %w", err)
		}
		g.Status = readStatus(status)
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grievances: %w", err)
	}
	return items, nil
}

// CountRecentSubmissions counts a citizen's grievances created after since.
func (s *PostgresStore) CountRecentSubmissions(ctx context.Context, citizenID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints WHERE citizen_id=$1 AND created_at > $2`, citizenID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent submissions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) HasDuplicateDescription(ctx context.Context, description string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM complaints WHERE LOWER(btrim(description)) = LOWER(btrim($1)))
	`, description).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate description: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, grievanceID string) ([]lifecycle.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, complaint_id, status, occurred_at, updated_by, actor_role, remarks
		FROM timeline_events
		WHERE complaint_id=$1
		ORDER BY occurred_at, id
	`, grievanceID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	items := make([]lifecycle.TimelineEvent, 0)
	for rows.Next() {
		var (
			event         lifecycle.TimelineEvent
			status, actor string
		)
		if err := rows.Scan(&event.ID, &event.GrievanceID, &status, &event.Timestamp, &event.UpdatedBy, &actor, &event.Remarks); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		event.Status = readStatus(status)
		event.ActorRole = rbac.Normalize(actor)
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return items, nil
}

// AppendEvent locks the grievance row, checks its current status against
// expect and inserts the event.
func (s *PostgresStore) AppendEvent(ctx context.Context, event lifecycle.TimelineEvent, expect lifecycle.Status) (lifecycle.TimelineEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lifecycle.TimelineEvent{}, fmt.Errorf("begin append event tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockGrievance(ctx, tx, event.GrievanceID); err != nil {
		return lifecycle.TimelineEvent{}, err
	}
	current, last, err := latestEvent(ctx, tx, event.GrievanceID)
	if err != nil {
		return lifecycle.TimelineEvent{}, err
	}
	if current != expect {
		return lifecycle.TimelineEvent{}, lifecycle.ErrConflict
	}
	if !last.IsZero() && !event.Timestamp.After(last) {
		event.Timestamp = last.Add(time.Microsecond)
	}
	if err := insertEvent(ctx, tx, event); err != nil {
		return lifecycle.TimelineEvent{}, err
	}
	if err := tx.Commit(); err != nil {
		return lifecycle.TimelineEvent{}, fmt.Errorf("commit append event: %w", err)
	}
	return event, nil
}

// CommitAssignment writes the audit record, the optional ASSIGNED event and
// the new assignment columns in one transaction.
func (s *PostgresStore) CommitAssignment(ctx context.Context, commit lifecycle.AssignmentCommit) (audit.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.Record{}, fmt.Errorf("begin assignment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	grievanceID := commit.Record.GrievanceID
	assigned, err := lockGrievance(ctx, tx, grievanceID)
	if err != nil {
		return audit.Record{}, err
	}
	if assigned != commit.ExpectOfficerID {
		return audit.Record{}, lifecycle.ErrConflict
	}

	record, err := audit.Insert(ctx, tx, commit.Record)
	if err != nil {
		return audit.Record{}, err
	}

	if commit.Event != nil {
		event := *commit.Event
		_, last, err := latestEvent(ctx, tx, grievanceID)
		if err != nil {
			return audit.Record{}, err
		}
		if !last.IsZero() && !event.Timestamp.After(last) {
			event.Timestamp = last.Add(time.Microsecond)
		}
		if err := insertEvent(ctx, tx, event); err != nil {
			return audit.Record{}, err
		}
	}

	var slaHours *int
	if commit.SLADeadline != nil {
		hours := commit.SLAHours
		slaHours = &hours
	}
	reassignStep := 0
	if commit.Record.Kind == audit.KindReassign {
		reassignStep = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE complaints SET
			assigned_officer_id = $2,
			priority = $3,
			assigned_at = COALESCE($4, assigned_at),
			sla_hours = COALESCE($5, sla_hours),
			sla_deadline = COALESCE($6, sla_deadline),
			reassignment_count = reassignment_count + $7
		WHERE id = $1
	`, grievanceID, commit.OfficerID, string(commit.Priority), commit.AssignedAt, slaHours, commit.SLADeadline, reassignStep); err != nil {
		return audit.Record{}, fmt.Errorf("update assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return audit.Record{}, fmt.Errorf("commit assignment: %w", err)
	}
	return record, nil
}

func lockGrievance(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var assigned string
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(assigned_officer_id, '') FROM complaints WHERE id=$1 FOR UPDATE`, id).Scan(&assigned)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("grievance %s: %w", id, lifecycle.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lock grievance: %w", err)
	}
	return assigned, nil
}

func latestEvent(ctx context.Context, tx *sql.Tx, grievanceID string) (lifecycle.Status, time.Time, error) {
	var (
		status string
		at     time.Time
	)
	err := tx.QueryRowContext(ctx, `
		SELECT status, occurred_at FROM timeline_events
		WHERE complaint_id=$1
		ORDER BY occurred_at DESC
		LIMIT 1
	`, grievanceID).Scan(&status, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.StatusSubmitted, time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read latest event: %w", err)
	}
	return readStatus(status), at, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, event lifecycle.TimelineEvent) error {
	if event.ID == "" {
		event.ID = util.NewSortableID()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO timeline_events (id, complaint_id, status, occurred_at, updated_by, actor_role, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.GrievanceID, string(event.Status), event.Timestamp, event.UpdatedBy, string(event.ActorRole), event.Remarks)
	if err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, fb Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (complaint_id, rating, comment)
		VALUES ($1, $2, $3)
		ON CONFLICT (complaint_id) DO NOTHING
	`, fb.GrievanceID, fb.Rating, fb.Comment)
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, a Attachment) (Attachment, error) {
	if a.ID == "" {
		a.ID = util.NewID("att")
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attachments (id, complaint_id, object_key, content_type, size, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, a.ID, a.GrievanceID, a.ObjectKey, a.ContentType, a.Size, a.UploadedBy).Scan(&a.CreatedAt)
	if err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, grievanceID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, complaint_id, object_key, content_type, size, uploaded_by, created_at
		FROM attachments WHERE complaint_id=$1 ORDER BY created_at
	`, grievanceID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.GrievanceID, &a.ObjectKey, &a.ContentType, &a.Size, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAdminAudit(ctx context.Context, entry AdminAuditEntry) error {
	if entry.ID == "" {
		entry.ID = util.NewSortableID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_audit (id, actor_id, action, target_resource, target_id, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.ActorID, entry.Action, entry.TargetResource, entry.TargetID, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("insert admin audit: %w", err)
	}
	return nil
}

// MarkSLANotified claims the breach notice for a grievance. It reports false
// when another sweep already holds the claim.
func (s *PostgresStore) MarkSLANotified(ctx context.Context, grievanceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sla_notices (complaint_id) VALUES ($1)
		ON CONFLICT (complaint_id) DO NOTHING
	`, grievanceID)
	if err != nil {
		return false, fmt.Errorf("mark sla notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark sla notified: %w", err)
	}
	return n == 1, nil
}

// ReleaseSLANotice drops a claim whose notice could not be sent so the next
// sweep tries again.
func (s *PostgresStore) ReleaseSLANotice(ctx context.Context, grievanceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sla_notices WHERE complaint_id = $1`, grievanceID); err != nil {
		return fmt.Errorf("release sla notice: %w", err)
	}
	return nil
}

// AnalyticsRows loads every grievance in the shape the dashboards need.
func (s *PostgresStore) AnalyticsRows(ctx context.Context) ([]AnalyticsRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.department, COALESCE(c.assigned_officer_id, ''), COALESCE(latest.status, 'SUBMITTED'),
			c.created_at, c.sla_deadline, resolved.at, f.rating
		FROM complaints c
		LEFT JOIN LATERAL (
			SELECT te.status FROM timeline_events te
			WHERE te.complaint_id = c.id
			ORDER BY te.occurred_at DESC
			LIMIT 1
		) latest ON TRUE
		LEFT JOIN LATERAL (
			SELECT MIN(te.occurred_at) AS at FROM timeline_events te
			WHERE te.complaint_id = c.id AND te.status = 'RESOLVED'
		) resolved ON TRUE
		LEFT JOIN feedback f ON f.complaint_id = c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load analytics rows: %w", err)
	}
	defer rows.Close()

	items := make([]AnalyticsRow, 0)
	for rows.Next() {
		var (
			row    AnalyticsRow
			status string
			rating sql.NullInt64
		)
		if err := rows.Scan(&row.GrievanceID, &row.Department, &row.OfficerID, &status,
			&row.CreatedAt, &row.SLADeadline, &row.ResolvedAt, &rating); err != nil {
			return nil, fmt.Errorf("scan analytics row: %w", err)
		}
		row.Status = string(readStatus(status))
		if rating.Valid {
			r := int(rating.Int64)
			row.Rating = &r
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics rows: %w", err)
	}
	return items, nil
}

// readStatus maps stored labels, legacy ones included, onto the canonical
// set. Unknown labels are kept verbatim so they show up rather than vanish.
func readStatus(raw string) lifecycle.Status {
	status, ok := lifecycle.NormalizeStatus(raw)
	if !ok {
		log.Printf("store: unknown timeline status %q", raw)
		return lifecycle.Status(raw)
	}
	return status
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
