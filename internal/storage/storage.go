// Package storage addresses document bytes by a (disk, path) pair.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExist is returned when no object lives at the given path.
var ErrNotExist = errors.New("storage: object does not exist")

// Backend is one physical disk.
type Backend interface {
	Exists(ctx context.Context, path string) (bool, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) (string, error)
	Size(ctx context.Context, path string) (int64, error)
	// Delete removes path; a missing object is not an error.
	Delete(ctx context.Context, path string) error
}

// Storage routes calls to named disks.
type Storage struct {
	disks       map[string]Backend
	defaultDisk string
}

// New registers backends by disk name. defaultDisk is used when a caller passes "".
func New(defaultDisk string, disks map[string]Backend) *Storage {
	return &Storage{disks: disks, defaultDisk: defaultDisk}
}

func (s *Storage) DefaultDisk() string { return s.defaultDisk }

func (s *Storage) disk(name string) (Backend, error) {
	if name == "" {
		name = s.defaultDisk
	}
	b, ok := s.disks[name]
	if !ok {
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
	return b, nil
}

func (s *Storage) Exists(ctx context.Context, disk, path string) (bool, error) {
	b, err := s.disk(disk)
	if err != nil {
		return false, err
	}
	return b.Exists(ctx, path)
}

func (s *Storage) Get(ctx context.Context, disk, path string) ([]byte, error) {
	b, err := s.disk(disk)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, path)
}

func (s *Storage) Put(ctx context.Context, disk, path string, data []byte) (string, error) {
	b, err := s.disk(disk)
	if err != nil {
		return "", err
	}
	return b.Put(ctx, path, data)
}

func (s *Storage) Size(ctx context.Context, disk, path string) (int64, error) {
	b, err := s.disk(disk)
	if err != nil {
		return 0, err
	}
	return b.Size(ctx, path)
}

func (s *Storage) Delete(ctx context.Context, disk, path string) error {
	b, err := s.disk(disk)
	if err != nil {
		return err
	}
	return b.Delete(ctx, path)
}
