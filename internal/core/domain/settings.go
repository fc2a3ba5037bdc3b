package domain

import "time"

// AppSettings holds all application settings.
type AppSettings struct {
	// Database is the catalog file location.
	Database DatabaseSettings `toml:"database"`

	// Crawl holds roots and crawl behaviour.
	Crawl CrawlSettings `toml:"crawl"`

	// Ignore lists files and folders the crawler never catalogs.
	Ignore IgnoreSettings `toml:"ignore"`

	// Detectors overrides or extends the built-in extension rules.
	Detectors map[string]DetectorRule `toml:"detectors"`

	// Text controls content extraction for the full-text index.
	Text TextSettings `toml:"text"`

	// Tokenizer controls filename and content tokenization.
	Tokenizer TokenizerSettings `toml:"tokenizer"`

	// Search holds query defaults.
	Search SearchSettings `toml:"search"`

	// Scheduler controls the daemon's periodic tasks.
	Scheduler SchedulerSettings `toml:"scheduler"`

	// LogFile is an append-only log sink. Empty disables it.
	LogFile string `toml:"log_file"`
}

// DatabaseSettings locates the catalog.
type DatabaseSettings struct {
	Path string `toml:"path"`
}

// CrawlSettings configures job discovery and the worker pool.
type CrawlSettings struct {
	// Roots are walked for job folders.
	Roots []string `toml:"roots"`

	// QuotesRoots hold YYYY folders that become QYYYY jobs.
	QuotesRoots []string `toml:"quotes_roots"`

	// QuotesYearMin skips older quote years.
	QuotesYearMin int `toml:"quotes_year_min"`

	// JobIDPattern finds the job ID in a folder name. The first capture
	// group (or the whole match) is the ID.
	JobIDPattern string `toml:"job_id_pattern"`

	// OnlyYearDirs limits discovery to YYYY children of each root.
	OnlyYearDirs bool `toml:"only_year_dirs_under_roots"`

	// DenylistPaths are never entered.
	DenylistPaths []string `toml:"denylist_paths"`

	// MaxPathLength is the full-path limit in characters.
	MaxPathLength int `toml:"max_path_length"`

	// Workers is the per-job file worker count.
	Workers int `toml:"workers"`

	// QueueSize bounds the channels between walker, workers and writer.
	QueueSize int `toml:"queue_size"`

	// MaxFilesPerSecond throttles content reads. Zero is unlimited.
	MaxFilesPerSecond float64 `toml:"max_files_per_second"`

	// WatchDebounce delays re-crawls in watch mode.
	WatchDebounce Duration `toml:"watch_debounce"`
}

// IgnoreSettings filters walker output.
type IgnoreSettings struct {
	Ext       []string `toml:"ext"`
	DirTokens []string `toml:"dir_tokens"`
}

// DetectorRule tags a file by extension or filename token.
type DetectorRule struct {
	ExtAny        []string `toml:"ext_any"`
	NameTokensAny []string `toml:"name_tokens_any"`
}

// TextSettings configures content extraction.
type TextSettings struct {
	Enabled         bool     `toml:"enabled"`
	MaxChars        int      `toml:"max_chars"`
	MaxBytes        int64    `toml:"max_bytes"`
	PDFMaxPages     int      `toml:"pdf_max_pages"`
	PDFAllowTokens  []string `toml:"pdf_path_allow_tokens"`
	CSVMaxLines     int      `toml:"csv_max_lines"`
	XLSXSheetLimit  int      `toml:"xlsx_sheet_limit"`
	XLSXCellLimit   int      `toml:"xlsx_cells_limit"`
	IncludeOffice   bool     `toml:"include_office"`
	IncludePlain    bool     `toml:"include_plain"`
	IncludePDF      bool     `toml:"include_pdf"`
	MaxFileNameToks int      `toml:"max_filename_tokens"`
}

// TokenizerSettings configures token splitting.
type TokenizerSettings struct {
	Separators string `toml:"separators"`
}

// SearchSettings holds query defaults.
type SearchSettings struct {
	JobLimit  int `toml:"job_limit"`
	FileLimit int `toml:"file_limit"`
}

// SchedulerSettings configures the daemon.
type SchedulerSettings struct {
	Enabled        bool     `toml:"enabled"`
	IndexInterval  Duration `toml:"index_interval"`
	RollupInterval Duration `toml:"rollup_interval"`
}

// Duration is a time.Duration that reads and writes as "90s" style text.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultSeparators are split on in addition to whitespace and punctuation.
const DefaultSeparators = "-_./()[]{}"

// DefaultJobIDPattern matches ###-YY job folders.
const DefaultJobIDPattern = `\b(\d{3}-\d{2})\b`

// DefaultAppSettings returns settings with sensible defaults.
// Roots are left empty: nothing is crawled until they are configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Crawl: CrawlSettings{
			QuotesYearMin: 2022,
			JobIDPattern:  DefaultJobIDPattern,
			MaxPathLength: 260,
			Workers:       4,
			QueueSize:     64,
			WatchDebounce: Duration(2 * time.Second),
		},
		Ignore: IgnoreSettings{
			Ext:       []string{".tmp", ".bak", ".lnk", ".db", ".ds_store"},
			DirTokens: []string{"~snapshot", ".git"},
		},
		Text: TextSettings{
			Enabled:         true,
			MaxChars:        40000,
			MaxBytes:        64 << 20,
			PDFMaxPages:     10,
			CSVMaxLines:     200,
			XLSXSheetLimit:  3,
			XLSXCellLimit:   500,
			IncludeOffice:   true,
			IncludePlain:    true,
			IncludePDF:      true,
			MaxFileNameToks: 64,
		},
		Tokenizer: TokenizerSettings{
			Separators: DefaultSeparators,
		},
		Search: SearchSettings{
			JobLimit:  DefaultJobLimit,
			FileLimit: DefaultFileLimit,
		},
		Scheduler: SchedulerSettings{
			Enabled:        true,
			IndexInterval:  Duration(6 * time.Hour),
			RollupInterval: Duration(24 * time.Hour),
		},
	}
}
