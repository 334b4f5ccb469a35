package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// fileSink appends records to one level's live file and rotates generations
// in place on the write path. Rotation state lives entirely on disk; the sink
// re-stats the live file before each append so an externally truncated file
// does not confuse the size accounting.
type fileSink struct {
	path     string
	maxSize  int64
	maxFiles int
}

func newFileSink(dir, level string, maxSize int64, maxFiles int) *fileSink {
	return &fileSink{
		path:     filepath.Join(dir, level+".log"),
		maxSize:  maxSize,
		maxFiles: maxFiles,
	}
}

func (s *fileSink) append(data []byte) error {
	if info, err := os.Stat(s.path); err == nil && info.Size() > s.maxSize {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// rotate shifts file.N to file.N+1 from oldest to newest, dropping the
// generation that would exceed maxFiles, then moves the live file to .1
func (s *fileSink) rotate() error {
	oldest := s.generation(s.maxFiles)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			return err
		}
	}

	for n := s.maxFiles - 1; n >= 1; n-- {
		from := s.generation(n)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, s.generation(n+1)); err != nil {
			return err
		}
	}

	return os.Rename(s.path, s.generation(1))
}

func (s *fileSink) generation(n int) string {
	return fmt.Sprintf("%s.%d", s.path, n)
}
