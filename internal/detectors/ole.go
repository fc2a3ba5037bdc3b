package detectors

import (
	"bytes"

	"github.com/richardlehane/mscfb"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// Ensure OLEDetector implements the interface.
var _ driven.Detector = (*OLEDetector)(nil)

// oleMagic starts every compound file binary.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// oleStreams maps top-level stream names to the legacy format that
// writes them. Quattro Pro for Windows stores its notebook in NativeContent_MAIN.
var oleStreams = map[string]domain.Tag{
	"Workbook":            domain.TagExcel,
	"Book":                domain.TagExcel,
	"WordDocument":        domain.TagWord,
	"PowerPoint Document": domain.TagPowerPoint,
	"NativeContent_MAIN":  domain.TagLegacyCalc,
}

// maxOLEEntries bounds the directory walk on damaged files.
const maxOLEEntries = 256

// OLEDetector tells legacy .xls, .doc and .ppt files apart by their
// stream directory, whatever their extension.
type OLEDetector struct{}

// NewOLEDetector creates an OLEDetector.
func NewOLEDetector() *OLEDetector {
	return &OLEDetector{}
}

// Name identifies the detector.
func (d *OLEDetector) Name() string { return "ole" }

// Detect opens the compound file and looks for known streams.
func (d *OLEDetector) Detect(p *domain.FileSample) []domain.Tag {
	if p == nil || p.Content == nil || !bytes.HasPrefix(p.Header, oleMagic) {
		return nil
	}

	r, err := mscfb.New(p.Content)
	if err != nil {
		return nil
	}

	seen := make(map[domain.Tag]bool)
	var tags []domain.Tag
	n := 0
	for entry, err := r.Next(); err == nil && n < maxOLEEntries; entry, err = r.Next() {
		n++
		if tag, ok := oleStreams[entry.Name]; ok && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
