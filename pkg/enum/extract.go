package enum

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/ledongthuc/pdf"
)

// ExtractedContent is one member or text stream pulled out of a file.
type ExtractedContent struct {
	Name    string // path within the archive, or "text" for documents
	Content []byte
}

// ExtractLimits bounds archive extraction.
type ExtractLimits struct {
	MaxMembers   int   // members read per archive (0 = 1000)
	MaxTotalSize int64 // uncompressed bytes read per archive (0 = 256MB)
}

func (l ExtractLimits) withDefaults() ExtractLimits {
	if l.MaxMembers <= 0 {
		l.MaxMembers = 1000
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = 256 << 20
	}
	return l
}

// archiveKind maps a file extension to an extractor name.
func archiveKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".jar", ".war", ".ear", ".apk", ".docx", ".xlsx", ".pptx", ".odt", ".ods":
		return "zip"
	case ".7z":
		return "7z"
	case ".pdf":
		return "pdf"
	default:
		return ""
	}
}

// shouldExtract checks if kind is enabled by the comma-separated list.
func shouldExtract(list, kind string) bool {
	if list == "" || kind == "" {
		return false
	}
	if list == "all" {
		return true
	}
	for _, t := range strings.Split(strings.ToLower(list), ",") {
		if strings.TrimSpace(t) == kind {
			return true
		}
	}
	return false
}

// Extract expands a zip or 7z archive into its members, or a PDF into its
// plain text. maxMember caps each member (0 = no limit); larger members
// are skipped.
func Extract(path string, content []byte, limits ExtractLimits, maxMember int64) ([]ExtractedContent, error) {
	limits = limits.withDefaults()
	switch archiveKind(path) {
	case "zip":
		return extractZip(content, limits, maxMember)
	case "7z":
		return extract7z(content, limits, maxMember)
	case "pdf":
		return extractPDF(content)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// memberBudget tracks extraction limits across one archive.
type memberBudget struct {
	limits    ExtractLimits
	maxMember int64
	members   int
	total     int64
}

// take reports whether a member of size bytes may be read.
func (b *memberBudget) take(size int64) bool {
	if b.members >= b.limits.MaxMembers || b.total+size > b.limits.MaxTotalSize {
		return false
	}
	if b.maxMember > 0 && size > b.maxMember {
		return false
	}
	b.members++
	b.total += size
	return true
}

func extractZip(content []byte, limits ExtractLimits, maxMember int64) ([]ExtractedContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}

	budget := memberBudget{limits: limits, maxMember: maxMember}
	var results []ExtractedContent
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !budget.take(int64(f.UncompressedSize64)) {
			continue
		}
		data, err := readMember(f.Open, int64(f.UncompressedSize64))
		if err != nil {
			continue
		}
		results = append(results, ExtractedContent{Name: f.Name, Content: data})
	}
	return results, nil
}

func extract7z(content []byte, limits ExtractLimits, maxMember int64) ([]ExtractedContent, error) {
	zr, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z: %w", err)
	}

	budget := memberBudget{limits: limits, maxMember: maxMember}
	var results []ExtractedContent
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !budget.take(int64(f.UncompressedSize)) {
			continue
		}
		data, err := readMember(f.Open, int64(f.UncompressedSize))
		if err != nil {
			continue
		}
		results = append(results, ExtractedContent{Name: f.Name, Content: data})
	}
	return results, nil
}

// readMember reads at most size bytes of a member.
func readMember(open func() (io.ReadCloser, error), size int64) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, size))
}

// extractPDF returns the plain text of every page. Page content streams
// are usually compressed, so literal patterns only match the rendered text.
func extractPDF(content []byte) ([]ExtractedContent, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, nil
	}
	return []ExtractedContent{{Name: "text", Content: []byte(text.String())}}, nil
}
