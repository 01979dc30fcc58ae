package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	root := "/srv/minidrive/user_data/bob"

	cases := []struct {
		name      string
		wd        string
		requested string
		want      string
		valid     bool
	}{
		{"empty", "", "", root, true},
		{"relative", "", "docs", root + "/docs", true},
		{"relative in wd", "docs", "notes.txt", root + "/docs/notes.txt", true},
		{"dot", "docs", ".", root + "/docs", true},
		{"up within root", "docs/a", "../b", root + "/docs/b", true},
		{"up to root", "docs", "..", root, true},
		{"absolute ignores wd", "docs", "/music", root + "/music", true},
		{"absolute root", "docs", "/", root, true},
		{"double slash", "", "//x//y", root + "/x/y", true},
		{"escape relative", "", "../../../etc", "/srv/etc", false},
		{"escape from wd", "docs", "../../alice", "/srv/minidrive/user_data/alice", false},
		{"escape absolute", "docs", "/../../etc/passwd", "/srv/minidrive/etc/passwd", false},
		{"sibling prefix", "", "../bobby", "/srv/minidrive/user_data/bobby", false},
		{"up then back in", "", "../bob/docs", root + "/docs", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, valid := Resolve(root, tc.wd, tc.requested)
			if got != filepath.FromSlash(tc.want) {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tc.wd, tc.requested, got, tc.want)
			}
			if valid != tc.valid {
				t.Errorf("Resolve(%q, %q) valid = %v, want %v", tc.wd, tc.requested, valid, tc.valid)
			}
		})
	}
}

func TestResolveContainmentProperty(t *testing.T) {
	root := "/data/_public"
	wds := []string{"", "a", "a/b", "a/b/c"}
	escapes := []string{"..", "../..", "../../..", "a/../../x", "/..", "/../../etc", "./../y"}

	for _, wd := range wds {
		depth := 0
		if wd != "" {
			depth = len(strings.Split(wd, "/"))
		}
		for _, req := range escapes {
			got, valid := Resolve(root, wd, req)
			if valid != Within(root, got) {
				t.Fatalf("Resolve(%q, %q) validity disagrees with Within", wd, req)
			}
			if valid && !strings.HasPrefix(got, root) {
				t.Fatalf("Resolve(%q, %q) = %q valid but not prefixed by root", wd, req, got)
			}
		}
		// Climbing exactly one level more than the working dir depth always escapes.
		req := strings.Repeat("../", depth+1)
		if _, valid := Resolve(root, wd, req); valid {
			t.Fatalf("Resolve(%q, %q) should escape", wd, req)
		}
	}
}

func TestWithin(t *testing.T) {
	cases := []struct {
		root, p string
		want    bool
	}{
		{"/a/b", "/a/b", true},
		{"/a/b", "/a/b/c", true},
		{"/a/b", "/a/bc", false},
		{"/a/b", "/a", false},
		{"/a/b/", "/a/b/c", true},
		{"/", "/anything", true},
		{"/a/b", "/a/b/../c", false},
	}
	for _, tc := range cases {
		if got := Within(tc.root, tc.p); got != tc.want {
			t.Errorf("Within(%q, %q) = %v, want %v", tc.root, tc.p, got, tc.want)
		}
	}
}

func TestRel(t *testing.T) {
	root := "/r"
	if got, err := Rel(root, "/r"); err != nil || got != "" {
		t.Fatalf("Rel(root) = %q, %v", got, err)
	}
	if got, err := Rel(root, "/r/a/b"); err != nil || got != "a/b" {
		t.Fatalf("Rel = %q, %v", got, err)
	}
	if _, err := Rel(root, "/other"); err == nil {
		t.Fatal("expected error for path outside root")
	}
	if got := Display(root, "/r/a"); got != "/a" {
		t.Fatalf("Display = %q", got)
	}
}

func TestCanonicalRejectsSymlinkEscape(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	for _, d := range []string{root, outside, filepath.Join(root, "inner")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "inner"), filepath.Join(root, "alias")); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		rel  string
		want bool
	}{
		{"", true},
		{"inner", true},
		{"inner/not-yet", true},
		{"alias", true},
		{"alias/new/deeper", true},
		{"escape", false},
		{"escape/new", false},
	}
	for _, tc := range cases {
		p := filepath.Join(root, tc.rel)
		if _, lexical := Resolve(root, "", tc.rel); !lexical {
			t.Fatalf("%q should pass the lexical check", tc.rel)
		}
		got, err := Canonical(root, p)
		if err != nil {
			t.Fatalf("Canonical(%q): %v", tc.rel, err)
		}
		if got != tc.want {
			t.Errorf("Canonical(%q) = %v, want %v", tc.rel, got, tc.want)
		}
	}
}
