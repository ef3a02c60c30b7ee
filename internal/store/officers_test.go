package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rohzyy/govai/internal/lifecycle"
)

var officerRowColumns = []string{"id", "user_id", "employee_id", "name", "email", "designation", "department_id", "ward", "zone", "status"}

func TestCreateOfficerInsertsUserAndOfficer(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "Ravi Kumar", "ravi@city.gov", "", "hash", "OFFICER").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO officers").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "EMP-7", "Junior Engineer", "dep_pwd", "Ward 4", "", "Active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM officers o JOIN users u").
		WillReturnRows(sqlmock.NewRows(officerRowColumns).
			AddRow("off-7", "usr-7", "EMP-7", "Ravi Kumar", "ravi@city.gov", "Junior Engineer", "dep_pwd", "Ward 4", "", "Active"))
	mock.ExpectCommit()

	got, err := s.CreateOfficer(context.Background(), NewOfficer{
		Name:         "Ravi Kumar",
		Email:        "ravi@city.gov",
		PasswordHash: "hash",
		EmployeeID:   "EMP-7",
		Designation:  "Junior Engineer",
		DepartmentID: "dep_pwd",
		Ward:         "Ward 4",
		Status:       lifecycle.OfficerActive,
	})
	if err != nil {
		t.Fatalf("create officer: %v", err)
	}
	want := lifecycle.Officer{
		ID: "off-7", UserID: "usr-7", EmployeeID: "EMP-7", Name: "Ravi Kumar", Email: "ravi@city.gov",
		Designation: "Junior Engineer", DepartmentID: "dep_pwd", Ward: "Ward 4", Status: lifecycle.OfficerActive,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("officer mismatch (-want +got):\n%s", diff)
	}
	expectMet(t, mock)
}

func TestCreateOfficerDuplicateEmployeeID(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO officers").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.CreateOfficer(context.Background(), NewOfficer{Name: "Ravi", Email: "ravi@city.gov", EmployeeID: "EMP-7", Status: lifecycle.OfficerActive})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	expectMet(t, mock)
}

func TestUpdateOfficerStatusOnly(t *testing.T) {
	s, mock := newMockStore(t)
	status := lifecycle.OfficerOnLeave
	onLeave := string(status)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE officers SET").
		WithArgs("off-7", nil, nil, nil, onLeave).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("usr-7"))
	mock.ExpectQuery("FROM officers o JOIN users u").
		WillReturnRows(sqlmock.NewRows(officerRowColumns).
			AddRow("off-7", "usr-7", "EMP-7", "Ravi Kumar", "ravi@city.gov", "", "", "", "", onLeave))
	mock.ExpectCommit()

	got, err := s.UpdateOfficer(context.Background(), "off-7", OfficerChanges{Status: &status})
	if err != nil {
		t.Fatalf("update officer: %v", err)
	}
	if got.Status != lifecycle.OfficerOnLeave {
		t.Fatalf("expected On Leave, got %q", got.Status)
	}
	expectMet(t, mock)
}

func TestUpdateOfficerUnknown(t *testing.T) {
	s, mock := newMockStore(t)
	name := "Someone"
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE officers SET").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	_, err := s.UpdateOfficer(context.Background(), "off-404", OfficerChanges{Name: &name})
	if !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectMet(t, mock)
}

func TestListAdminAuditFiltersAndCaps(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery("FROM admin_audit").
		WithArgs("officer.", "", maxAuditLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "action", "target_resource", "target_id", "ip_address", "created_at"}).
			AddRow("aud-1", "admin-1", "officer.update", "officer", "off-7", "203.0.113.9", at))

	got, err := s.ListAdminAudit(context.Background(), AdminAuditQuery{Action: "officer.", Limit: 10_000})
	if err != nil {
		t.Fatalf("list admin audit: %v", err)
	}
	want := []AdminAuditEntry{{ID: "aud-1", ActorID: "admin-1", Action: "officer.update", TargetResource: "officer", TargetID: "off-7", IPAddress: "203.0.113.9", CreatedAt: at}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	expectMet(t, mock)
}
