package store

import (
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=meethub dbname=meethub sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func TestPresentHostsQuery(t *testing.T) {
	db := dryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var n int64
		return presentHosts(tx, "m1").Count(&n)
	})

	for _, want := range []string{
		`FROM "meeting_participants"`,
		`meeting_id = 'm1'`,
		`role = 'host'`,
		`joined_at IS NOT NULL`,
		`left_at IS NULL`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("query %q lacks %q", sql, want)
		}
	}
	if !strings.HasPrefix(sql, "SELECT count(*)") {
		t.Errorf("query %q is not a count", sql)
	}
}

func TestMeetingLookupQuery(t *testing.T) {
	db := dryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var m Meeting
		return meetingByID(tx, "m1").First(&m)
	})
	if !strings.Contains(sql, `FROM "meetings" WHERE id = 'm1'`) {
		t.Errorf("query %q", sql)
	}
}
