package service

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"signal_bot/internal/models"
)

// FileJournal пишет по одному JSON-событию на строку.
type FileJournal struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "journal dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	return &FileJournal{path: path, f: f}, nil
}

func (j *FileJournal) Append(_ context.Context, ev models.Event) error {
	line, err := sonic.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "FileJournal.Append")
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return errors.New("FileJournal.Append: journal closed")
	}
	_, err = j.f.Write(line)
	return errors.Wrap(err, "FileJournal.Append")
}

func (j *FileJournal) Recent(_ context.Context, limit int) (events []models.Event, err error) {
	defer func() {
		err = errors.Wrap(err, "FileJournal.Recent")
	}()
	if limit <= 0 {
		return nil, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// кольцо из последних limit строк
	ring := make([][]byte, 0, limit)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		if len(line) == 0 {
			continue
		}
		if len(ring) == limit {
			ring = append(ring[1:], line)
		} else {
			ring = append(ring, line)
		}
	}
	if err = sc.Err(); err != nil {
		return nil, err
	}

	events = make([]models.Event, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		ev, err := fromPayload(ring[i])
		if err != nil {
			continue // битая строка после падения процесса
		}
		events = append(events, ev)
	}
	return events, nil
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}
