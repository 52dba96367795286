package database

import (
	"strings"
	"testing"
)

func TestSettingsDSN(t *testing.T) {
	s := Settings{User: "cinema", Password: "secret", Host: "db", Port: "3306", Name: "seatsync"}
	dsn := s.DSN()

	for _, want := range []string{"cinema:secret@tcp(db:3306)/seatsync", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestSettingsDSNWithoutPassword(t *testing.T) {
	dsn := Settings{User: "root", Host: "127.0.0.1", Port: "3306", Name: "x"}.DSN()
	if !strings.HasPrefix(dsn, "root@tcp(127.0.0.1:3306)/x") {
		t.Fatalf("unexpected DSN %q", dsn)
	}
}
