package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLibrary(t *testing.T, names ...string) *Library {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return New(dir, func(string) time.Duration { return 42 * time.Second })
}

func TestResolve(t *testing.T) {
	lib := newTestLibrary(t, "song.mp3")

	path, err := lib.Resolve("song.mp3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(path) != "song.mp3" {
		t.Fatalf("path = %q", path)
	}

	if _, err := lib.Resolve("nope.mp3"); !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("missing track err = %v, want ErrTrackNotFound", err)
	}
}

func TestResolveRejectsEscapingNames(t *testing.T) {
	lib := newTestLibrary(t, "song.mp3")

	for _, name := range []string{
		"",
		"   ",
		"../song.mp3",
		"sub/song.mp3",
		"/etc/passwd",
		".hidden.mp3",
	} {
		if _, err := lib.Resolve(name); !errors.Is(err, ErrInvalidTrackName) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidTrackName", name, err)
		}
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	lib := newTestLibrary(t, "b.mp3", "a.ogg", "notes.txt", "c.FLAC")
	if err := os.Mkdir(filepath.Join(lib.audioDir, "sub.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := lib.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
		if e.Duration != 42*time.Second {
			t.Errorf("%s duration = %v", e.Name, e.Duration)
		}
	}
	want := "a.ogg b.mp3 c.FLAC"
	if got := strings.Join(names, " "); got != want {
		t.Fatalf("list = %q, want %q", got, want)
	}
}

func TestSaveUpload(t *testing.T) {
	lib := newTestLibrary(t)

	path, err := lib.SaveUpload("new.mp3", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "payload" {
		t.Fatalf("read back: %q, %v", data, err)
	}
	if _, err := lib.Resolve("new.mp3"); err != nil {
		t.Fatalf("resolve after upload: %v", err)
	}

	// no temp files left behind
	entries, _ := os.ReadDir(lib.audioDir)
	for _, de := range entries {
		if strings.HasPrefix(de.Name(), ".upload-") {
			t.Fatalf("leftover temp file %s", de.Name())
		}
	}
}

func TestSaveUploadRejectsBadNames(t *testing.T) {
	lib := newTestLibrary(t)

	if _, err := lib.SaveUpload("notes.txt", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := lib.SaveUpload("../evil.mp3", strings.NewReader("x")); !errors.Is(err, ErrInvalidTrackName) {
		t.Fatalf("err = %v, want ErrInvalidTrackName", err)
	}
}
