package detectors

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure SignatureDetector implements the interface.
var _ driven.Detector = (*SignatureDetector)(nil)

// mimeTags maps sniffed MIME types to tags.
var mimeTags = map[string]domain.Tag{
	"application/pdf":              domain.TagPDF,
	"application/zip":              domain.TagArchive,
	"application/x-7z-compressed":  domain.TagArchive,
	"application/x-rar-compressed": domain.TagArchive,
	"application/gzip":             domain.TagArchive,
	"image/jpeg":                   domain.TagPhoto,
	"image/png":                    domain.TagPhoto,
	"image/bmp":                    domain.TagPhoto,
	"image/tiff":                   domain.TagPhoto,
	"image/heic":                   domain.TagPhoto,
	"image/vnd.dwg":                domain.TagCAD,
	"image/vnd.dxf":                domain.TagCAD,
}

// headerMarkers are byte strings that vendor tools write near the start
// of their files.
var headerMarkers = []struct {
	marker []byte
	tag    domain.Tag
}{
	{[]byte("AMETank"), domain.TagAMETank},
	{[]byte("AMETANK"), domain.TagAMETank},
	{[]byte("COMPRESS"), domain.TagCompress},
	{[]byte("Codeware"), domain.TagCompress},
	{[]byte("codeware"), domain.TagCompress},
}

// SignatureDetector classifies a file by its leading bytes, so renamed or
// extensionless files are still tagged.
type SignatureDetector struct{}

// NewSignatureDetector creates a SignatureDetector.
func NewSignatureDetector() *SignatureDetector {
	return &SignatureDetector{}
}

// Name identifies the detector.
func (d *SignatureDetector) Name() string { return "signature" }

// Detect sniffs the header. Files that were not read yield nothing.
func (d *SignatureDetector) Detect(p *domain.FileSample) []domain.Tag {
	if p == nil || len(p.Header) == 0 {
		return nil
	}

	mime := mimetype.Detect(p.Header)
	if tag, ok := mimeTags[mime.String()]; ok {
		if tag == domain.TagArchive && ooxmlExts[strings.ToLower(p.Ext)] {
			return nil
		}
		return []domain.Tag{tag}
	}

	// Vendor markers only count in text or unrecognised binary formats.
	if !mime.Is("text/plain") && !mime.Is("application/octet-stream") && !isXML(mime) {
		return nil
	}
	var tags []domain.Tag
	for _, hm := range headerMarkers {
		if bytes.Contains(p.Header, hm.marker) {
			tags = append(tags, hm.tag)
		}
	}
	return tags
}

// ooxmlExts are zip containers that are documents, not archives.
var ooxmlExts = map[string]bool{".docx": true, ".xlsx": true, ".xlsm": true, ".pptx": true}

func isXML(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/xml") || m.Is("application/xml") {
			return true
		}
	}
	return false
}
