package domain

import "time"

// JobFlags are the boolean job-level summaries.
type JobFlags struct {
	HasPDF        bool `json:"has_pdf"`
	HasDWGDXF     bool `json:"has_dwg_dxf"`
	HasCompress   bool `json:"has_compress"`
	HasAME        bool `json:"has_ame"`
	HasPhotos     bool `json:"has_photos"`
	HasLegacyCalc bool `json:"has_legacy_calc"`
}

// Flag names one JobFlags field for filtering.
type Flag string

// Filterable flags.
const (
	FlagPDF        Flag = "pdf"
	FlagCAD        Flag = "cad"
	FlagCompress   Flag = "compress"
	FlagAME        Flag = "ame"
	FlagPhotos     Flag = "photos"
	FlagLegacyCalc Flag = "legacy"
)

// Has reports whether flag f is set.
func (f JobFlags) Has(flag Flag) bool {
	switch flag {
	case FlagPDF:
		return f.HasPDF
	case FlagCAD:
		return f.HasDWGDXF
	case FlagCompress:
		return f.HasCompress
	case FlagAME:
		return f.HasAME
	case FlagPhotos:
		return f.HasPhotos
	case FlagLegacyCalc:
		return f.HasLegacyCalc
	default:
		return false
	}
}

// Badges lists the set flags as short display labels.
func (f JobFlags) Badges() []string {
	var out []string
	if f.HasCompress {
		out = append(out, "COMPRESS")
	}
	if f.HasAME {
		out = append(out, "AME")
	}
	if f.HasDWGDXF {
		out = append(out, "CAD")
	}
	if f.HasPDF {
		out = append(out, "PDF")
	}
	if f.HasPhotos {
		out = append(out, "PHOTOS")
	}
	if f.HasLegacyCalc {
		out = append(out, "LEGACY")
	}
	return out
}

// Rollup is the derived state of a job.
type Rollup struct {
	FileCountTotal    int64     `json:"file_count_total"`
	ByteSizeTotal     int64     `json:"byte_size_total"`
	Flags             JobFlags  `json:"flags"`
	ScoreCompleteness float64   `json:"score_completeness"`
	ErrorsCount       int64     `json:"errors_count"`
	LastModified      time.Time `json:"last_modified_utc"`
}

// deliverables are the categories counted by ScoreCompleteness.
const deliverables = 5

// ComputeRollup derives a job's rollup from its files. Deleted rows are
// ignored, so the result depends only on the live file set.
func ComputeRollup(files []FileRecord) Rollup {
	var r Rollup
	for i := range files {
		f := &files[i]
		if f.Deleted {
			continue
		}
		r.FileCountTotal++
		r.ByteSizeTotal += f.SizeBytes
		if f.MTime.After(r.LastModified) {
			r.LastModified = f.MTime
		}
		if f.HasError() {
			r.ErrorsCount++
		}

		tags := f.DetectorHits
		if f.Ext == ".pdf" || tags.Has(TagPDF) {
			r.Flags.HasPDF = true
		}
		if f.Ext == ".dwg" || f.Ext == ".dxf" || tags.Has(TagCAD) {
			r.Flags.HasDWGDXF = true
		}
		if tags.Has(TagCompress) {
			r.Flags.HasCompress = true
		}
		if tags.Has(TagAMETank) {
			r.Flags.HasAME = true
		}
		if tags.Has(TagPhoto) {
			r.Flags.HasPhotos = true
		}
		if tags.Has(TagLegacyCalc) {
			r.Flags.HasLegacyCalc = true
		}
	}

	present := 0
	for _, b := range []bool{r.Flags.HasPDF, r.Flags.HasDWGDXF, r.Flags.HasCompress, r.Flags.HasAME, r.Flags.HasPhotos} {
		if b {
			present++
		}
	}
	r.ScoreCompleteness = float64(present) / deliverables
	return r
}
