package db

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/logger"
)

func sessionWithLogger(t *testing.T, threshold time.Duration) (*gorm.DB, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Format: logger.FormatJSON, Output: &buf})
	conn := newTestDB(t).Session(&gorm.Session{Logger: newQueryLogger(logg, threshold)})
	return conn, &buf
}

func TestQueryLoggerReportsFailuresButNotMissingRows(t *testing.T) {
	conn, buf := sessionWithLogger(t, 0)

	var row testModel
	if err := conn.First(&row, 42).Error; err == nil {
		t.Fatal("expected record not found")
	}
	if buf.Len() != 0 {
		t.Fatalf("missing rows should not be logged: %s", buf.String())
	}

	var count int64
	if err := conn.Raw("SELECT count(*) FROM crop_calendar").Scan(&count).Error; err == nil {
		t.Fatal("expected query against a missing table to fail")
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"db.query.failed"`) || !strings.Contains(out, "crop_calendar") {
		t.Fatalf("expected failed query log, got %s", out)
	}
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	conn, buf := sessionWithLogger(t, time.Nanosecond)

	if err := conn.Create(&testModel{Name: "bajra"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"db.query.slow"`) || !strings.Contains(out, "INSERT") {
		t.Fatalf("expected slow query log, got %s", out)
	}
}

func TestQueryLoggerDiscardsWithoutLogger(t *testing.T) {
	if newQueryLogger(nil, time.Second) == nil {
		t.Fatal("expected a discard logger")
	}
}
