// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package browse

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/filetail/wb/features"
	"github.com/filetail/wb/fileops"
)

const (
	// maxViewBytes bounds how much of a file the view page reads.
	// Larger files are shown truncated with a download link.
	maxViewBytes = 2 << 20

	// binarySniffBytes is how far into a file to look for a NUL byte.
	binarySniffBytes = 8000
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"link":     linkTo,
	"tailLink": func(rel string) string { return linkTo(rel) + "?tail=1" },
	"download": func(rel string) string { return linkTo(rel) + "?download=1" },
	"stream":   func(rel string) string { return "/stream/" + strings.TrimPrefix(linkTo(rel), "/") },
	"bytes":    func(size int64) string { return humanize.IBytes(uint64(size)) },
	"ago":      func(when time.Time) string { return humanize.Time(when) },
	"hidden":   hiddenUnless,
}).ParseFS(templateFS, "templates/*.html"))

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var (
	highlightStyle     = styles.Get("github")
	highlightFormatter = chromahtml.New(chromahtml.WithLineNumbers(true), chromahtml.TabWidth(4))
)

// page is the data every template receives.
type page struct {
	Title string
	Flags features.Flags

	// Rel is the root-relative path of the page's subject and Parent
	// that of its directory. HasParent is false at the root.
	Rel       string
	Parent    string
	HasParent bool

	Entries []fileops.Entry

	Body      template.HTML
	Plain     string
	Binary    bool
	Truncated bool
	Size      int64

	Status  int
	Message string
}

func (s *Server) render(w io.Writer, name string, data page) error {
	data.Flags = s.features.Snapshot()
	return pageTemplates.ExecuteTemplate(w, name, data)
}

// linkTo returns the escaped URL path for a root-relative path.
func linkTo(rel string) string {
	if rel == "" {
		return "/"
	}
	segments := strings.Split(rel, "/")
	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}
	return "/" + strings.Join(segments, "/")
}

// hiddenUnless renders the hidden attribute for controls whose
// capability is off. The page script flips it live from /features.
func hiddenUnless(flags features.Flags, capability string) template.HTMLAttr {
	if flags.Enabled(features.Capability(capability)) {
		return ""
	}
	return "hidden"
}

// renderFileBody fills the body fields of a file view from content.
func renderFileBody(data *page, name string, content []byte) {
	sniff := content
	if len(sniff) > binarySniffBytes {
		sniff = sniff[:binarySniffBytes]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		data.Binary = true
		return
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		var buffer bytes.Buffer
		if err := markdown.Convert(content, &buffer); err == nil {
			data.Body = template.HTML(buffer.String())
			return
		}
	}
	if body, ok := highlight(name, content); ok {
		data.Body = body
		return
	}
	data.Plain = string(bytes.ToValidUTF8(content, []byte("\uFFFD")))
}

// highlight renders source with chroma, choosing the lexer by file
// name and then by content. It reports false when no lexer fits.
func highlight(name string, source []byte) (template.HTML, bool) {
	lexer := lexers.Match(name)
	if lexer == nil {
		lexer = lexers.Analyse(string(source))
	}
	if lexer == nil {
		return "", false
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, string(source))
	if err != nil {
		return "", false
	}
	var buffer bytes.Buffer
	if err := highlightFormatter.Format(&buffer, highlightStyle, iterator); err != nil {
		return "", false
	}
	return template.HTML(buffer.String()), true
}
