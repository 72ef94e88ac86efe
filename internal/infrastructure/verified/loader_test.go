package verified

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_NormalizesAndDropsInvalidRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "verified.json")
	payload := `[
		{"round": 1180, "date": "2025-07-12", "numbers": [45, 3, 12, 7, 21, 33], "bonus": 9},
		{"round": 1179, "date": "2025-07-05", "numbers": [1, 1, 2, 3, 4, 5], "bonus": 6},
		{"round": 900, "date": "2020-02-08", "numbers": [1, 2, 3, 4, 5, 6], "bonus": 7},
		{"round": 900, "date": "2020-02-08", "numbers": [8, 9, 10, 11, 12, 13], "bonus": 14}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rows, err := LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	if rows[0].Round != 900 || rows[0].Numbers[0] != 8 {
		t.Fatalf("duplicate round should keep the last entry: %+v", rows[0])
	}
	if rows[1].Round != 1180 || rows[1].Numbers != [6]int{3, 7, 12, 21, 33, 45} {
		t.Fatalf("numbers not normalized: %+v", rows[1])
	}
}

func TestLoadFile_EmptyPathAndErrors(t *testing.T) {
	t.Parallel()

	rows, err := LoadFile("  ", nil)
	if err != nil || rows != nil {
		t.Fatalf("empty path should be a no-op, got %v %v", rows, err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}

	if _, err := Parse([]byte(`{"round": 1}`), nil); err == nil {
		t.Fatalf("expected decode error for non-array payload")
	}
}
