package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

var (
	searchLimit       int
	searchFileLimit   int
	searchJSON        bool
	searchFiles       bool
	searchContentOnly bool
	searchNear        bool
	searchYears       string
	searchJob         string
	searchFlags       = map[domain.Flag]*bool{
		domain.FlagCompress:   new(bool),
		domain.FlagAME:        new(bool),
		domain.FlagCAD:        new(bool),
		domain.FlagPDF:        new(bool),
		domain.FlagPhotos:     new(bool),
		domain.FlagLegacyCalc: new(bool),
	}
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the job catalog",
	Long: `Finds jobs whose files match every term, by filename or by extracted
document content. "job:<id>" shows a single job instead. Without a query,
lists the jobs that pass the --job, --years and flag filters.

Examples:
  tankfinder search open top tank
  tankfinder search settlement --content-only --years 2018-2021,2024
  tankfinder search open top --near
  tankfinder search tank --compress --ame --files
  tankfinder search --compress --ame
  tankfinder search job:101-23`,
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchLimit, "limit", "n", 0, "maximum number of jobs (default search.job_limit)")
	f.IntVar(&searchFileLimit, "file-limit", 0, "maximum files listed per job (default search.file_limit)")
	f.BoolVar(&searchJSON, "json", false, "output results as JSON")
	f.BoolVar(&searchFiles, "files", false, "list matching files under each job")
	f.BoolVar(&searchContentOnly, "content-only", false, "match document content only")
	f.BoolVar(&searchNear, "near", false, "require terms close together in document content")
	f.StringVar(&searchYears, "years", "", "job years, e.g. 2018-2021,2024")
	f.StringVar(&searchJob, "job", "", "search within one job")
	f.BoolVar(searchFlags[domain.FlagCompress], "compress", false, "only jobs with COMPRESS files")
	f.BoolVar(searchFlags[domain.FlagAME], "ame", false, "only jobs with AME Tank files")
	f.BoolVar(searchFlags[domain.FlagCAD], "cad", false, "only jobs with DWG/DXF drawings")
	f.BoolVar(searchFlags[domain.FlagPDF], "pdf", false, "only jobs with PDFs")
	f.BoolVar(searchFlags[domain.FlagPhotos], "photos", false, "only jobs with photos")
	f.BoolVar(searchFlags[domain.FlagLegacyCalc], "legacy", false, "only jobs with legacy calculation files")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return notConfigured("search")
	}

	years, err := domain.ParseYearSet(searchYears)
	if err != nil {
		return err
	}

	req := domain.SearchRequest{
		Query:        joinArgs(args),
		JobID:        searchJob,
		Years:        years,
		Flags:        selectedFlags(),
		ContentOnly:  searchContentOnly,
		Near:         searchNear,
		IncludeFiles: searchFiles,
		Limit:        searchLimit,
		FileLimit:    searchFileLimit,
	}
	if strings.TrimSpace(req.Query) == "" && !req.HasFilters() {
		return fmt.Errorf("%w: give a query or a --job, --years or flag filter", domain.ErrInvalidInput)
	}
	applySearchDefaults(&req)

	resp, err := searchService.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, resp)
	}
	if resp.Mode == domain.SearchModeJob {
		outputJob(cmd, resp)
		return nil
	}
	outputSearchTable(cmd, resp)
	return nil
}

// selectedFlags returns the flag filters in a fixed order.
func selectedFlags() []domain.Flag {
	order := []domain.Flag{
		domain.FlagCompress, domain.FlagAME, domain.FlagCAD,
		domain.FlagPDF, domain.FlagPhotos, domain.FlagLegacyCalc,
	}
	var out []domain.Flag
	for _, f := range order {
		if *searchFlags[f] {
			out = append(out, f)
		}
	}
	return out
}

// applySearchDefaults fills unset limits from settings.
func applySearchDefaults(req *domain.SearchRequest) {
	if settingsService == nil || (req.Limit > 0 && req.FileLimit > 0) {
		return
	}
	s, err := settingsService.Get()
	if err != nil {
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.Search.JobLimit
	}
	if req.FileLimit <= 0 {
		req.FileLimit = s.Search.FileLimit
	}
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) {
	if len(resp.Jobs) == 0 {
		cmd.Println("No jobs found.")
		return
	}

	cmd.Printf("%d jobs matched\n\n", len(resp.Jobs))
	for i := range resp.Jobs {
		hit := &resp.Jobs[i]
		job := &hit.Job
		cmd.Printf("  %s  %s  %s\n",
			styles.Title.Render(job.ID), formatYear(job.Year), badges(job.Flags.Badges()))
		cmd.Printf("      %s\n", styles.Path.Render(job.RootPath))
		cmd.Println(styles.Muted.Render(fmt.Sprintf("      %d hits, %s files, %s, modified %s",
			hit.Hits, formatCount(job.FileCountTotal), formatBytes(job.ByteSizeTotal), formatAge(job.LastModified))))
		outputFiles(cmd, hit.Files, "      ")
		cmd.Println()
	}
}

func outputJob(cmd *cobra.Command, resp *domain.SearchResponse) {
	if len(resp.Jobs) == 0 {
		cmd.Println("Job not found.")
		return
	}
	hit := &resp.Jobs[0]
	job := &hit.Job

	cmd.Printf("%s  %s\n", styles.Title.Render("Job "+job.ID), badges(job.Flags.Badges()))
	cmd.Printf("  Path:          %s\n", styles.Path.Render(job.RootPath))
	cmd.Printf("  Year:          %s\n", formatYear(job.Year))
	cmd.Printf("  Files:         %s (%s)\n", formatCount(job.FileCountTotal), formatBytes(job.ByteSizeTotal))
	cmd.Printf("  Completeness:  %.0f%%\n", job.ScoreCompleteness*100)
	if job.ErrorsCount > 0 {
		cmd.Printf("  Errors:        %s\n", styles.Error.Render(formatCount(job.ErrorsCount)))
	}
	cmd.Printf("  Last modified: %s\n", formatAge(job.LastModified))
	cmd.Printf("  Last seen:     %s\n", formatAge(job.LastSeen))
	if len(hit.Files) > 0 {
		cmd.Println()
		outputFiles(cmd, hit.Files, "  ")
		if more := hit.Hits - len(hit.Files); more > 0 {
			cmd.Println(styles.Muted.Render(fmt.Sprintf("  ... %d more", more)))
		}
	}
}

func outputFiles(cmd *cobra.Command, files []domain.FileRecord, indent string) {
	for i := range files {
		f := &files[i]
		line := fmt.Sprintf("%s%s  %s  %s", indent, f.RelPath, formatBytes(f.SizeBytes), f.MTime.Format("2006-01-02"))
		if tags := f.DetectorHits.String(); tags != "" {
			line += "  " + styles.Muted.Render(tags)
		}
		switch {
		case f.PathTooLong:
			line += "  " + styles.Warning.Render("path too long")
		case f.ReadError != "":
			line += "  " + styles.Error.Render("unreadable")
		}
		cmd.Println(line)
	}
}
