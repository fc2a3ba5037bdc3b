package domain

import (
	"io"
	"strings"
	"time"
)

// FileRecord is one cataloged file. Rows are never removed: a file that
// disappears is tombstoned and a file that reappears gets a new row.
type FileRecord struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	RelPath      string    `json:"rel_path"`
	Ext          string    `json:"ext"`
	SizeBytes    int64     `json:"size_bytes"`
	Hash16       string    `json:"file_hash16"`
	MTime        time.Time `json:"mtime_utc"`
	Kind         FileKind  `json:"kind"`
	TokensFname  []string  `json:"tokens_fname"`
	DetectorHits TagSet    `json:"detector_hits"`

	// PathTooLong is set when the full path exceeded the configured
	// maximum and the content was not read.
	PathTooLong bool `json:"path_too_long,omitempty"`

	// ReadError holds the last read failure for the file, if any.
	ReadError string `json:"read_error,omitempty"`

	Deleted   bool      `json:"deleted"`
	FirstSeen time.Time `json:"first_seen"`
	DeletedAt time.Time `json:"deleted_at,omitzero"`
}

// HasError reports whether the file counts toward the job's errors.
func (f *FileRecord) HasError() bool {
	return f.PathTooLong || f.ReadError != ""
}

// SameContent reports whether two records describe the same observed file
// state, ignoring identity and bookkeeping fields.
func (f *FileRecord) SameContent(o *FileRecord) bool {
	return f.Ext == o.Ext &&
		f.SizeBytes == o.SizeBytes &&
		f.Hash16 == o.Hash16 &&
		f.MTime.Equal(o.MTime) &&
		f.Kind == o.Kind &&
		strings.Join(f.TokensFname, " ") == strings.Join(o.TokensFname, " ") &&
		f.DetectorHits.Equal(o.DetectorHits) &&
		f.PathTooLong == o.PathTooLong &&
		f.ReadError == o.ReadError
}

// FileKind is a coarse file category used for display.
type FileKind string

// File kinds.
const (
	KindPDF   FileKind = "pdf"
	KindCAD   FileKind = "cad"
	KindImage FileKind = "image"
	KindText  FileKind = "text"
	KindOther FileKind = "other"
)

// KindForExt maps a lower-case extension (with dot) to a FileKind.
func KindForExt(ext string) FileKind {
	switch ext {
	case ".pdf":
		return KindPDF
	case ".dwg", ".dxf":
		return KindCAD
	case ".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".heic":
		return KindImage
	case ".txt", ".csv", ".log", ".md", ".xml", ".html", ".htm":
		return KindText
	default:
		return KindOther
	}
}

// FileEntry is a file observed by the walker. Err is set when the entry
// could not be stat'ed; Dir marks an unreadable directory whose contents
// were not observed.
type FileEntry struct {
	RelPath  string
	FullPath string
	Size     int64
	MTime    time.Time
	Dir      bool
	Err      error
}

// ContentFile is an open file handed to detectors and normalisers.
type ContentFile interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// FileSample is what detectors see of a file. Content is nil when the file
// was not read (path too long or unreadable).
type FileSample struct {
	Name       string
	Ext        string
	NameTokens []string
	Size       int64
	Header     []byte
	Content    io.ReaderAt
}

// RawFile is a readable file handed to a normaliser for text extraction.
type RawFile struct {
	Path    string
	RelPath string
	Ext     string
	Size    int64
	Content io.ReaderAt
}

// FullTextEntry is the searchable content of one fingerprint.
type FullTextEntry struct {
	Hash16  string
	Content string
}
