// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package fileops

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/filetail/wb/features"
	"github.com/filetail/wb/lib/fault"
	"github.com/filetail/wb/sandbox"
)

// Service runs file operations against one root with one flag set.
type Service struct {
	root     *sandbox.Root
	features *features.Set
	logger   *slog.Logger
}

// New returns a Service. All arguments are required.
func New(root *sandbox.Root, flags *features.Set, logger *slog.Logger) *Service {
	if root == nil || flags == nil || logger == nil {
		panic("fileops.New: root, flags, and logger are required")
	}
	return &Service{root: root, features: flags, logger: logger.With("component", "fileops")}
}

// Root returns the sandbox root.
func (s *Service) Root() *sandbox.Root { return s.root }

// Entry is one row of a directory listing.
type Entry struct {
	Name    string
	Rel     string
	IsDir   bool
	Symlink bool
	Size    int64
	ModTime time.Time
}

// Listing is the content of one directory.
type Listing struct {
	Path    sandbox.Path
	Entries []Entry
}

// File is an opened regular file. The caller closes it.
type File struct {
	*os.File
	Path sandbox.Path
	Info fs.FileInfo
}

// Stat resolves requested and stats its target.
func (s *Service) Stat(requested string) (sandbox.Path, fs.FileInfo, error) {
	path, err := s.root.Resolve(requested)
	if err != nil {
		return sandbox.Path{}, nil, err
	}
	info, err := os.Stat(path.Real())
	if err != nil {
		return sandbox.Path{}, nil, statFault(err, path)
	}
	return path, info, nil
}

// List returns the entries of a directory sorted by name. Symlinks are
// reported as links without following them, so a link pointing
// outside the root reveals nothing about its target.
func (s *Service) List(requested string) (Listing, error) {
	path, info, err := s.Stat(requested)
	if err != nil {
		return Listing{}, err
	}
	if !info.IsDir() {
		return Listing{}, fault.Malformedf("/%s is not a directory", path.Rel())
	}

	dirEntries, err := os.ReadDir(path.Real())
	if err != nil {
		return Listing{}, fault.IOErrorf(err, "listing /%s", path.Rel())
	}

	listing := Listing{Path: path, Entries: make([]Entry, 0, len(dirEntries))}
	for _, dirEntry := range dirEntries {
		entryInfo, err := dirEntry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Listing{}, fault.IOErrorf(err, "reading /%s", joinRel(path.Rel(), dirEntry.Name()))
		}
		listing.Entries = append(listing.Entries, Entry{
			Name:    dirEntry.Name(),
			Rel:     joinRel(path.Rel(), dirEntry.Name()),
			IsDir:   entryInfo.IsDir(),
			Symlink: entryInfo.Mode()&fs.ModeSymlink != 0,
			Size:    entryInfo.Size(),
			ModTime: entryInfo.ModTime(),
		})
	}
	return listing, nil
}

// Open opens a regular file for reading.
func (s *Service) Open(requested string) (*File, error) {
	path, err := s.root.Resolve(requested)
	if err != nil {
		return nil, err
	}
	return openRegular(path)
}

// Download opens a regular file for an attachment response. It
// requires the download capability.
func (s *Service) Download(requested string) (*File, error) {
	path, err := s.root.Resolve(requested)
	if err != nil {
		return nil, err
	}
	if err := s.features.Require(features.Download); err != nil {
		return nil, err
	}
	return openRegular(path)
}

func openRegular(path sandbox.Path) (*File, error) {
	file, err := os.Open(path.Real())
	if err != nil {
		return nil, statFault(err, path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fault.IOErrorf(err, "stat /%s", path.Rel())
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, fault.Malformedf("/%s is not a regular file", path.Rel())
	}
	return &File{File: file, Path: path, Info: info}, nil
}

func statFault(err error, path sandbox.Path) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fault.NotFoundf(err, "/%s does not exist", path.Rel())
	}
	return fault.IOErrorf(err, "accessing /%s", path.Rel())
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
