package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvstore.rdb")

	data := map[string]string{
		"persistent": "value1",
		"expiring":   "value2",
	}
	expireAt := map[string]time.Time{
		"expiring": time.Now().Add(time.Hour),
	}

	if err := SaveSnapshot(path, data, expireAt); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loadedData, loadedExpireAt, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loadedData["persistent"] != "value1" || loadedData["expiring"] != "value2" {
		t.Errorf("unexpected loaded data: %+v", loadedData)
	}
	if _, hasExpiry := loadedExpireAt["persistent"]; hasExpiry {
		t.Error("persistent key should not carry a TTL")
	}
	remaining, hasExpiry := loadedExpireAt["expiring"]
	if !hasExpiry {
		t.Fatal("expiring key should carry a TTL")
	}
	if remaining.Before(time.Now()) {
		t.Error("expiring key's reloaded TTL should still be in the future")
	}
}

func TestSaveSnapshotOmitsAlreadyExpiredKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvstore.rdb")

	data := map[string]string{"gone": "v", "here": "v"}
	expireAt := map[string]time.Time{"gone": time.Now().Add(-time.Minute)}

	if err := SaveSnapshot(path, data, expireAt); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, _, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if _, ok := loaded["gone"]; ok {
		t.Error("expected an already-expired key to be omitted from the snapshot")
	}
	if _, ok := loaded["here"]; !ok {
		t.Error("expected a live key to survive the snapshot")
	}
}

func TestSaveSnapshotWritesHeaderAndTrailer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvstore.rdb")

	if err := SaveSnapshot(path, map[string]string{"k": "v"}, nil); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	content := string(raw)
	if content[:len(rdbHeader)] != rdbHeader {
		t.Errorf("expected snapshot to begin with %q, got %q", rdbHeader, content)
	}
	if content[len(content)-4:] != "EOF\n" {
		t.Errorf("expected snapshot to end with EOF, got %q", content)
	}
}

func TestLoadSnapshotMissingFileIsNoOp(t *testing.T) {
	dir := t.TempDir()
	data, expireAt, err := LoadSnapshot(filepath.Join(dir, "absent.rdb"))
	if err != nil {
		t.Fatalf("expected nil error for a missing snapshot, got %v", err)
	}
	if len(data) != 0 || len(expireAt) != 0 {
		t.Errorf("expected empty maps for a missing snapshot, got %v %v", data, expireAt)
	}
}

func TestLoadSnapshotWrongHeaderIsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.rdb")
	if err := os.WriteFile(path, []byte("NOTAREALHEADER\nSET k v\nEOF\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, _, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("expected nil error for a bad header, got %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected no data loaded from a file with the wrong header, got %v", data)
	}
}

func TestSaveSnapshotIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvstore.rdb")

	if err := SaveSnapshot(path, map[string]string{"k": "v1"}, nil); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := SaveSnapshot(path, map[string]string{"k": "v2"}, nil); err != nil {
		t.Fatalf("second SaveSnapshot failed: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected the .tmp file to be gone after a successful rename")
	}
	data, _, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if data["k"] != "v2" {
		t.Errorf("expected the second snapshot to fully replace the first, got %q", data["k"])
	}
}
