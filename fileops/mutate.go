// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package fileops

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/filetail/wb/features"
	"github.com/filetail/wb/lib/fault"
	"github.com/filetail/wb/sandbox"
)

// Upload writes content into directory under the base name of
// clientName, replacing an existing regular file of that name. The
// content lands in a temporary file in the same directory first, so a
// failed upload never leaves a partial file under the final name.
func (s *Service) Upload(directory, clientName string, content io.Reader) (sandbox.Path, error) {
	dir, err := s.root.Resolve(directory)
	if err != nil {
		return sandbox.Path{}, err
	}
	if err := s.features.Require(features.Upload); err != nil {
		return sandbox.Path{}, err
	}

	name, err := uploadName(clientName)
	if err != nil {
		return sandbox.Path{}, err
	}
	info, err := os.Stat(dir.Real())
	if err != nil {
		return sandbox.Path{}, statFault(err, dir)
	}
	if !info.IsDir() {
		return sandbox.Path{}, fault.Malformedf("/%s is not a directory", dir.Rel())
	}

	target, err := s.root.Resolve(joinRel(dir.Rel(), name))
	if err != nil {
		return sandbox.Path{}, err
	}
	if existing, err := os.Lstat(target.Abs()); err == nil && !existing.Mode().IsRegular() {
		return sandbox.Path{}, fault.Malformedf("/%s exists and is not a regular file", target.Rel())
	}

	temp, err := os.CreateTemp(dir.Real(), ".wb-upload-*")
	if err != nil {
		return sandbox.Path{}, fault.IOErrorf(err, "creating upload in /%s", dir.Rel())
	}
	tempName := temp.Name()
	written, copyErr := io.Copy(temp, content)
	closeErr := temp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tempName)
		return sandbox.Path{}, fault.IOErrorf(errors.Join(copyErr, closeErr), "writing /%s", target.Rel())
	}
	if err := os.Chmod(tempName, 0o644); err != nil {
		os.Remove(tempName)
		return sandbox.Path{}, fault.IOErrorf(err, "writing /%s", target.Rel())
	}
	if err := os.Rename(tempName, target.Abs()); err != nil {
		os.Remove(tempName)
		return sandbox.Path{}, fault.IOErrorf(err, "writing /%s", target.Rel())
	}

	s.logger.Info("file uploaded", "path", target.Rel(), "bytes", written)
	return target, nil
}

// uploadName reduces a client-supplied filename to its final
// component. Browsers on Windows may send backslash paths.
func uploadName(clientName string) (string, error) {
	normalized := strings.ReplaceAll(clientName, `\`, "/")
	if index := strings.LastIndexByte(normalized, '/'); index >= 0 {
		normalized = normalized[index+1:]
	}
	if err := validName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fault.Malformedf("invalid file name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return fault.Malformedf("file name %q may not contain a path separator", name)
	}
	return nil
}

// Delete removes a file, symlink, or directory tree. The root itself
// cannot be deleted. A symlink is removed, never its target.
func (s *Service) Delete(requested string) (sandbox.Path, error) {
	path, err := s.root.Resolve(requested)
	if err != nil {
		return sandbox.Path{}, err
	}
	if err := s.features.Require(features.Delete); err != nil {
		return sandbox.Path{}, err
	}
	if path.IsRoot() {
		return sandbox.Path{}, fault.Forbiddenf("the sandbox root cannot be deleted")
	}
	if _, err := os.Lstat(path.Abs()); err != nil {
		return sandbox.Path{}, statFault(err, path)
	}
	if err := os.RemoveAll(path.Abs()); err != nil {
		return sandbox.Path{}, fault.IOErrorf(err, "deleting /%s", path.Rel())
	}

	s.logger.Info("path deleted", "path", path.Rel())
	return path, nil
}

// Rename gives the entry at requested a new name in the same
// directory. It refuses to replace an existing entry.
func (s *Service) Rename(requested, newName string) (sandbox.Path, error) {
	source, err := s.root.Resolve(requested)
	if err != nil {
		return sandbox.Path{}, err
	}
	if err := s.features.Require(features.Rename); err != nil {
		return sandbox.Path{}, err
	}
	if source.IsRoot() {
		return sandbox.Path{}, fault.Forbiddenf("the sandbox root cannot be renamed")
	}
	if err := validName(newName); err != nil {
		return sandbox.Path{}, err
	}
	destination, err := s.root.Resolve(joinRel(source.ParentRel(), newName))
	if err != nil {
		return sandbox.Path{}, err
	}
	if _, err := os.Lstat(source.Abs()); err != nil {
		return sandbox.Path{}, statFault(err, source)
	}

	if err := renameNoReplace(source.Abs(), destination.Abs()); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return sandbox.Path{}, fault.Malformedf("/%s already exists", destination.Rel())
		}
		return sandbox.Path{}, fault.IOErrorf(err, "renaming /%s", source.Rel())
	}

	s.logger.Info("path renamed", "from", source.Rel(), "to", destination.Rel())
	return destination, nil
}

// renameNoReplace renames atomically without replacing an existing
// destination. Filesystems without RENAME_NOREPLACE get a check
// followed by a plain rename.
func renameNoReplace(from, to string) error {
	err := unix.Renameat2(unix.AT_FDCWD, from, unix.AT_FDCWD, to, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EEXIST) {
		return &fs.PathError{Op: "rename", Path: to, Err: fs.ErrExist}
	}
	if !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOSYS) {
		return &fs.PathError{Op: "rename", Path: from, Err: err}
	}

	if _, statErr := os.Lstat(to); statErr == nil {
		return &fs.PathError{Op: "rename", Path: to, Err: fs.ErrExist}
	}
	return os.Rename(from, to)
}
