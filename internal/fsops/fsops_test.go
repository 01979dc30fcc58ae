package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.Symlink("b.txt", filepath.Join(dir, "c-link"))

	entries, err := OS{}.ListEntries(dir)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Name != "a" || entries[0].Type != "directory" || entries[0].Size != 0 {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Name != "b.txt" || entries[1].Type != "file" || entries[1].Size != 5 {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if len(entries) == 3 && (entries[2].Type != "symlink" || entries[2].Size != 0) {
		t.Errorf("entries[2] = %+v", entries[2])
	}
}

func TestCreateAndRemove(t *testing.T) {
	fsys := OS{}
	dir := t.TempDir()
	target := filepath.Join(dir, "docs")

	if err := fsys.CreateDir(target, false); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	if err := fsys.CreateDir(target, false); err == nil {
		t.Fatal("second non-recursive CreateDir should fail")
	}
	if err := fsys.CreateDir(target, true); err != nil {
		t.Fatalf("CreateDir with parents on existing dir: %v", err)
	}
	if err := fsys.CreateDir(filepath.Join(dir, "x", "y"), false); err == nil {
		t.Fatal("non-recursive CreateDir should not create parents")
	}

	ok, err := fsys.Exists(target)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if ft, err := fsys.FileType(target); err != nil || ft != TypeDirectory {
		t.Fatalf("FileType = %v, %v", ft, err)
	}

	file := filepath.Join(target, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if ft, _ := fsys.FileType(file); ft != TypeRegular {
		t.Fatalf("FileType(file) = %v", ft)
	}
	if err := fsys.RemoveFile(file); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if ok, _ := fsys.Exists(file); ok {
		t.Fatal("file should be gone")
	}

	if err := os.MkdirAll(filepath.Join(target, "deep", "er"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := fsys.RemoveDirRecursive(target); err != nil {
		t.Fatalf("RemoveDirRecursive: %v", err)
	}
	if ok, _ := fsys.Exists(target); ok {
		t.Fatal("directory should be gone")
	}
}

func TestExistsFollowsSymlinks(t *testing.T) {
	fsys := OS{}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "real"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("real", filepath.Join(dir, "good")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink("missing", filepath.Join(dir, "dangling")); err != nil {
		t.Fatal(err)
	}

	if ok, err := fsys.Exists(filepath.Join(dir, "good")); err != nil || !ok {
		t.Errorf("Exists(good) = %v, %v", ok, err)
	}
	if ok, err := fsys.Exists(filepath.Join(dir, "dangling")); err != nil || ok {
		t.Errorf("Exists(dangling) = %v, %v, want false", ok, err)
	}
}
