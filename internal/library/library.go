// Package library is the track store: a directory of audio files addressed
// by bare file name.
package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	ErrTrackNotFound     = errors.New("track not found")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrInvalidTrackName  = errors.New("invalid track name")
)

var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".flac": true,
}

// Library lists and resolves tracks under a single audio directory. Duration
// probing is delegated so the package stays free of media dependencies.
type Library struct {
	audioDir string
	probe    func(path string) time.Duration
}

func New(audioDir string, probe func(path string) time.Duration) *Library {
	return &Library{audioDir: audioDir, probe: probe}
}

// Resolve maps a track name to a playable path. Names are bare file names;
// anything that escapes the audio directory is rejected.
func (l *Library) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTrackName, name)
	}
	path := filepath.Join(l.audioDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrTrackNotFound, name)
	}
	return path, nil
}

// Duration reports a track's playable length, zero when unknown.
func (l *Library) Duration(path string) time.Duration {
	if l.probe == nil {
		return 0
	}
	return l.probe(path)
}

type Entry struct {
	Name     string
	Duration time.Duration
}

// List returns all audio files in the library, sorted by name.
func (l *Library) List() ([]Entry, error) {
	dirents, err := os.ReadDir(l.audioDir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range dirents {
		if de.IsDir() || !allowedExtensions[strings.ToLower(filepath.Ext(de.Name()))] {
			continue
		}
		out = append(out, Entry{
			Name:     de.Name(),
			Duration: l.Duration(filepath.Join(l.audioDir, de.Name())),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveUpload stores an uploaded file in the audio directory. The write goes
// to a temp file first and is renamed into place so a half-written upload is
// never resolvable.
func (l *Library) SaveUpload(name string, src io.Reader) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTrackName, name)
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}

	tmp, err := os.CreateTemp(l.audioDir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	final := filepath.Join(l.audioDir, name)
	if err := os.Rename(tmp.Name(), final); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return final, nil
}
