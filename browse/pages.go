// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package browse

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/filetail/wb/lib/fault"
	"github.com/filetail/wb/sandbox"
)

// maxDirField bounds the "dir" part of an upload.
const maxDirField = 4096

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	requested := r.PathValue("path")
	path, info, err := s.files.Stat(requested)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	query := r.URL.Query()
	switch {
	case info.IsDir():
		s.serveListing(w, r, requested)
	case query.Has("download"):
		s.serveDownload(w, r, requested)
	case query.Has("tail"):
		s.servePage(w, r, "tail.html", http.StatusOK, page{
			Title:     path.Name(),
			Rel:       path.Rel(),
			Parent:    path.ParentRel(),
			HasParent: true,
		})
	default:
		s.serveFile(w, r, requested)
	}
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, requested string) {
	listing, err := s.files.List(requested)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.servePage(w, r, "listing.html", http.StatusOK, page{
		Title:     "/" + listing.Path.Rel(),
		Rel:       listing.Path.Rel(),
		Parent:    listing.Path.ParentRel(),
		HasParent: !listing.Path.IsRoot(),
		Entries:   listing.Entries,
	})
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, requested string) {
	file, err := s.files.Open(requested)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxViewBytes+1))
	if err != nil {
		s.fail(w, r, fault.IOErrorf(err, "reading /%s", file.Path.Rel()))
		return
	}
	data := page{
		Title:     file.Path.Name(),
		Rel:       file.Path.Rel(),
		Parent:    file.Path.ParentRel(),
		HasParent: true,
		Size:      file.Info.Size(),
	}
	if len(content) > maxViewBytes {
		content = content[:maxViewBytes]
		data.Truncated = true
	}
	renderFileBody(&data, file.Path.Name(), content)
	s.servePage(w, r, "file.html", http.StatusOK, data)
}

func (s *Server) serveDownload(w http.ResponseWriter, r *http.Request, requested string) {
	file, err := s.files.Download(requested)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer file.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Path.Name()})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", downloadETag(file.Path, file.Info.Size(), file.Info.ModTime().UnixNano()))
	http.ServeContent(w, r, file.Path.Name(), file.Info.ModTime(), file)
}

// downloadETag identifies one version of a file by path, size, and
// modification time.
func downloadETag(path sandbox.Path, size, modNanos int64) string {
	hasher := blake3.New()
	hasher.WriteString(path.Rel())
	hasher.WriteString("\x00" + strconv.FormatInt(size, 10))
	hasher.WriteString("\x00" + strconv.FormatInt(modNanos, 10))
	return `"` + hex.EncodeToString(hasher.Sum(nil)[:16]) + `"`
}

// handleUpload streams each file part into the sandbox without
// buffering the whole request. The "dir" field must precede the files.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		s.fail(w, r, fault.Malformedf("upload must be multipart/form-data"))
		return
	}

	var (
		directory string
		haveDir   bool
		uploaded  []sandbox.Path
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(w, r, fault.Malformedf("reading upload: %v", err))
			return
		}

		switch part.FormName() {
		case "dir":
			value, err := io.ReadAll(io.LimitReader(part, maxDirField))
			if err != nil {
				part.Close()
				s.fail(w, r, fault.Malformedf("reading upload directory: %v", err))
				return
			}
			directory, haveDir = string(value), true
		case "file":
			if !haveDir {
				part.Close()
				s.fail(w, r, fault.Malformedf("upload directory must precede the files"))
				return
			}
			// An empty file input still sends a part, without a name.
			if part.FileName() == "" {
				break
			}
			target, err := s.files.Upload(directory, part.FileName(), part)
			if err != nil {
				part.Close()
				s.fail(w, r, err)
				return
			}
			uploaded = append(uploaded, target)
		}
		part.Close()
	}

	if len(uploaded) == 0 {
		s.fail(w, r, fault.Malformedf("no file selected"))
		return
	}
	http.Redirect(w, r, linkTo(uploaded[0].ParentRel()), http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.files.Delete(r.PostFormValue("path"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, linkTo(deleted.ParentRel()), http.StatusSeeOther)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	renamed, err := s.files.Rename(r.PostFormValue("path"), r.PostFormValue("name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, linkTo(renamed.ParentRel()), http.StatusSeeOther)
}

// servePage renders into a buffer first so a template failure still
// produces a clean 500.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request, name string, status int, data page) {
	var buffer bytes.Buffer
	if err := s.render(&buffer, name, data); err != nil {
		s.logger.Error("rendering page", "template", name, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buffer.Bytes())
}

// fail answers with the error page for err. Client mistakes are logged
// at info; i/o and internal failures at error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := fault.HTTPStatus(kind)
	switch kind {
	case fault.IOError, fault.Unknown:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	default:
		s.logger.Info("request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind.String(), "error", err)
	}
	s.servePage(w, r, "error.html", status, page{
		Title:   http.StatusText(status),
		Status:  status,
		Message: fault.PublicMessage(err),
	})
}
