// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/filetail/wb/lib/fault"
)

// Root is the canonical sandbox directory. It is immutable after
// NewRoot returns and safe for concurrent use.
type Root struct {
	dir string
}

// Path is a resolved client path guaranteed to be the root or one of
// its descendants. The zero value is not valid; only Root.Resolve
// produces Paths.
type Path struct {
	// abs is the lexical location (symlinks in the final component not
	// followed). Operations on the directory entry itself (delete,
	// rename) use this.
	abs string

	// real is abs with every symlink evaluated. Content I/O (open,
	// list, tail) uses this.
	real string

	// rel is the slash-separated path relative to the root; "" for the
	// root itself.
	rel string
}

// NewRoot canonicalizes dir (absolute, symlinks evaluated) and checks
// that it is a directory.
func NewRoot(dir string) (*Root, error) {
	if dir == "" {
		return nil, fmt.Errorf("sandbox root is empty")
	}
	absolute, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root %q: %w", dir, err)
	}
	canonical, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root %q: %w", dir, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("checking sandbox root %q: %w", canonical, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %q is not a directory", canonical)
	}
	return &Root{dir: filepath.Clean(canonical)}, nil
}

// Dir returns the canonical root directory.
func (r *Root) Dir() string { return r.dir }

// Resolve joins requested onto the root and verifies the result stays
// inside it. A leading "/" is relative to the root, the way URL paths
// are. The final component may not exist yet (upload and rename
// targets), but every existing ancestor is symlink-checked.
func (r *Root) Resolve(requested string) (Path, error) {
	if strings.IndexByte(requested, 0) >= 0 {
		return Path{}, fault.Malformedf("path contains a NUL byte")
	}

	joined := filepath.Join(r.dir, filepath.FromSlash(strings.TrimLeft(requested, "/")))
	rel, ok := r.relative(joined)
	if !ok {
		return Path{}, fault.Forbiddenf("path %q escapes the sandbox", requested)
	}

	real, err := r.evalExisting(joined)
	if err != nil {
		return Path{}, err
	}
	if _, ok := r.relative(real); !ok {
		return Path{}, fault.Forbiddenf("path %q resolves outside the sandbox", requested)
	}

	return Path{abs: joined, real: real, rel: rel}, nil
}

// relative returns candidate relative to the root in slash form and
// whether candidate is the root or a descendant.
func (r *Root) relative(candidate string) (string, bool) {
	rel, err := filepath.Rel(r.dir, candidate)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

// evalExisting evaluates symlinks on the longest existing prefix of
// path and re-appends the nonexistent remainder. A directory entry that
// exists but cannot be evaluated (a dangling symlink) is forbidden: its
// target could be created outside the root later.
func (r *Root) evalExisting(path string) (string, error) {
	existing := path
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !isMissing(err) {
			if errors.Is(err, syscall.ELOOP) {
				return "", fault.Forbiddenf("symlink loop in %q", r.display(path))
			}
			return "", fault.IOErrorf(err, "resolving %q", r.display(path))
		}
		if _, lstatErr := os.Lstat(existing); lstatErr == nil {
			return "", fault.Forbiddenf("dangling symlink at %q", r.display(existing))
		}
		parent := filepath.Dir(existing)
		if parent == existing || existing == r.dir {
			// The root always exists; reaching here means it was
			// removed underneath us.
			return "", fault.NotFoundf(err, "sandbox root is missing")
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}
}

func (r *Root) display(path string) string {
	if rel, ok := r.relative(path); ok {
		return "/" + rel
	}
	return filepath.Base(path)
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// Abs returns the lexical absolute path of the directory entry.
func (p Path) Abs() string { return p.abs }

// Real returns the symlink-evaluated absolute path for content I/O.
func (p Path) Real() string { return p.real }

// Rel returns the slash-separated path relative to the root, "" for
// the root itself.
func (p Path) Rel() string { return p.rel }

// IsRoot reports whether p is the sandbox root.
func (p Path) IsRoot() bool { return p.rel == "" }

// Name returns the final path component, or "/" for the root.
func (p Path) Name() string {
	if p.IsRoot() {
		return "/"
	}
	return filepath.Base(p.abs)
}

// ParentRel returns the root-relative slash path of p's parent
// directory. The root is its own parent.
func (p Path) ParentRel() string {
	if p.IsRoot() {
		return ""
	}
	parent := filepath.ToSlash(filepath.Dir(filepath.FromSlash(p.rel)))
	if parent == "." {
		return ""
	}
	return parent
}

// URL returns the browse URL path for p ("/" for the root).
func (p Path) URL() string { return "/" + p.rel }
