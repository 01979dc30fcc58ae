package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testParams keeps argon2 cheap in tests.
var testParams = Params{Time: 1, MemoryKiB: 64, Threads: 1}

func TestHashVerify(t *testing.T) {
	hash, err := Hash("s3cret", testParams)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=64,t=1,p=1$") {
		t.Fatalf("hash = %q", hash)
	}

	ok, err := Verify("s3cret", hash)
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	for i := 0; i < 2; i++ {
		ok, err := Verify("wrong", hash)
		if err != nil || ok {
			t.Fatalf("Verify(wrong) #%d = %v, %v", i, ok, err)
		}
	}
}

func TestHashIsSalted(t *testing.T) {
	a, _ := Hash("same", testParams)
	b, _ := Hash("same", testParams)
	if a == b {
		t.Fatal("two hashes of the same password should differ")
	}
}

func TestVerifyMalformed(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=64,t=1,p=1$c2FsdA$a2V5", "$argon2id$v=19$m=x$c2FsdA$a2V5", "$argon2id$v=19$m=4,t=1,p=1$c2FsdA$a2V5"} {
		if _, err := Verify("pw", h); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("Verify(%q) err = %v, want ErrMalformedHash", h, err)
		}
	}
}

func TestVerifyLibsodiumStyleHash(t *testing.T) {
	hash, err := Hash("pw", testParams)
	if err != nil {
		t.Fatal(err)
	}
	// Libsodium writes into a fixed buffer padded with NUL bytes.
	padded := hash + strings.Repeat("\x00", 10)
	if ok, err := Verify("pw", padded); err != nil || !ok {
		t.Fatalf("Verify(padded) = %v, %v", ok, err)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams.Validate(); err != nil {
		t.Fatalf("DefaultParams: %v", err)
	}
	if err := (Params{Time: 1, MemoryKiB: 8, Threads: 2}).Validate(); err == nil {
		t.Fatal("expected error for too little memory")
	}
	if err := (Params{Time: 0, MemoryKiB: 64, Threads: 1}).Validate(); err == nil {
		t.Fatal("expected error for zero time")
	}
}

func newJSONStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".minidrive", "users.json")
	s := NewStore(NewJSONFile(path), testParams)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, path
}

func TestLoadCreatesEmptyRegistry(t *testing.T) {
	s, path := newJSONStore(t)
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("registry not created: %v", err)
	}
	if !strings.Contains(string(data), `"users": []`) {
		t.Fatalf("registry = %s", data)
	}
}

func TestStoreRegisterVerifyPersist(t *testing.T) {
	s, path := newJSONStore(t)

	if s.UserExists("bob") {
		t.Fatal("bob should not exist yet")
	}
	if s.VerifyPassword("bob", "x") {
		t.Fatal("unknown user must not verify")
	}
	if err := s.Register("bob", "x"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("bob", "y"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate Register err = %v", err)
	}
	if !s.VerifyPassword("bob", "x") {
		t.Fatal("correct password rejected")
	}
	if s.VerifyPassword("bob", "y") || s.VerifyPassword("bob", "y") {
		t.Fatal("wrong password accepted")
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewStore(NewJSONFile(path), testParams)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.UserExists("bob") || !reloaded.VerifyPassword("bob", "x") {
		t.Fatal("bob lost after reload")
	}
}

func TestRegisterRejectsBadNames(t *testing.T) {
	s, _ := newJSONStore(t)
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "nul\x00"} {
		if err := s.Register(name, "pw"); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("Register(%q) err = %v, want ErrInvalidUsername", name, err)
		}
	}
}

func TestLoadInvalidRegistry(t *testing.T) {
	cases := map[string]string{
		"not json":     `{{{`,
		"no users":     `{"accounts":[]}`,
		"users null":   `{"users":null}`,
		"users object": `{"users":{}}`,
		"array root":   `[]`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "users.json")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			err := NewStore(NewJSONFile(path), testParams).Load()
			if !errors.Is(err, ErrInvalidRegistry) {
				t.Fatalf("Load err = %v, want ErrInvalidRegistry", err)
			}
		})
	}
}

func TestLoadSkipsIncompleteRecordsAndReadsLegacyKey(t *testing.T) {
	hash, _ := Hash("pw", testParams)
	content := `{"users":[{"username":"old","pw_hash":"` + hash + `"},{"username":"nohash"},42]}`
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(NewJSONFile(path), testParams)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 1 || !s.VerifyPassword("old", "pw") {
		t.Fatalf("expected only the legacy user, got %d users", s.Len())
	}
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	backend, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s := NewStore(backend, testParams)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d", s.Len())
	}
	for _, name := range []string{"alice", "bob"} {
		if err := s.Register(name, name+"-pw"); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Saving twice must be idempotent.
	if err := s.Save(); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	backend, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer backend.Close()
	users, err := backend.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("users = %+v", users)
	}
	if ok, _ := Verify("bob-pw", users[1].PasswordHash); !ok {
		t.Fatal("bob's hash does not verify")
	}

	if err := backend.Save(users[:1]); err != nil {
		t.Fatalf("Save subset: %v", err)
	}
	users, _ = backend.Load()
	if len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("after prune users = %+v", users)
	}
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBackend("json", dir)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, ok := b.(*JSONFile); !ok {
		t.Fatalf("json backend = %T", b)
	}

	b, err = OpenBackend("sqlite", dir)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer b.Close()
	if _, err := os.Stat(filepath.Join(dir, "users.db")); err != nil {
		t.Fatalf("users.db not created: %v", err)
	}

	if _, err := OpenBackend("redis", dir); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("redis err = %v", err)
	}
}
