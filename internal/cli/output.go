package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/usecase"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const maxTitleWidth = 70

// ConferenceOutput is the printable view of one conference.
type ConferenceOutput struct {
	Title    string `json:"title"`
	Deadline string `json:"deadline,omitempty"`
	Dates    string `json:"dates,omitempty"`
	Location string `json:"location,omitempty"`
	URL      string `json:"url,omitempty"`
	Source   string `json:"source,omitempty"`
}

// OutputResult contains data to be output
type OutputResult struct {
	RunID        string              `json:"run_id"`
	Date         string              `json:"date"`
	Include      string              `json:"include,omitempty"`
	Exclude      string              `json:"exclude,omitempty"`
	Workbook     string              `json:"workbook"`
	StoredActive int                 `json:"stored_active"`
	StoredPast   int                 `json:"stored_past"`
	Scraped      int                 `json:"scraped"`
	AlreadyKnown int                 `json:"already_known"`
	Duplicates   int                 `json:"duplicates"`
	Unique       int                 `json:"unique"`
	Added        []ConferenceOutput  `json:"added"`
	Excluded     []usecase.Exclusion `json:"excluded"`
	MovedToPast  int                 `json:"moved_to_past"`
	Merged       int                 `json:"merged"`
	Evicted      int                 `json:"evicted"`
	Active       int                 `json:"active"`
	Past         int                 `json:"past"`
	Notified     bool                `json:"notified"`
}

// NewOutputResult flattens a pipeline report for printing.
func NewOutputResult(report usecase.Report, filter domain.TopicFilter, workbook string) *OutputResult {
	result := &OutputResult{
		RunID:        report.RunID,
		Date:         report.Today.Format(time.DateOnly),
		Include:      filter.Include,
		Exclude:      filter.Exclude,
		Workbook:     workbook,
		StoredActive: report.LoadedActive,
		StoredPast:   report.LoadedPast,
		Scraped:      report.Scraped,
		AlreadyKnown: len(report.Dedup.AlreadyKnown),
		Duplicates:   len(report.Dedup.Duplicates),
		Unique:       len(report.Dedup.Unique),
		Added:        make([]ConferenceOutput, 0, len(report.NewlyListed)),
		Excluded:     report.Excluded,
		MovedToPast:  len(report.Lifecycle.Expired),
		Merged:       len(report.Lifecycle.Merged),
		Evicted:      len(report.Lifecycle.Evicted),
		Active:       len(report.Lifecycle.Active),
		Past:         len(report.Lifecycle.Past),
		Notified:     report.Notified,
	}
	if result.Excluded == nil {
		result.Excluded = []usecase.Exclusion{}
	}
	for _, c := range report.NewlyListed {
		result.Added = append(result.Added, ConferenceOutput{
			Title:    c.Title,
			Deadline: domain.FormatDeadline(c),
			Dates:    c.ConferenceDates,
			Location: c.Location,
			URL:      c.URL,
			Source:   c.Source,
		})
	}
	return result
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func writeText(w io.Writer, result *OutputResult) error {
	fmt.Fprintf(w, "Run %s (%s)\n", result.RunID, result.Date)
	switch {
	case result.Include != "" || result.Exclude != "":
		if result.Include != "" {
			fmt.Fprintf(w, "Include: %s\n", result.Include)
		}
		if result.Exclude != "" {
			fmt.Fprintf(w, "Exclude: %s\n", result.Exclude)
		}
	default:
		fmt.Fprintln(w, "No filters, all conferences are included")
	}

	fmt.Fprintf(w, "\nAlready stored: %d active, %d past\n", result.StoredActive, result.StoredPast)
	fmt.Fprintf(w, "Scraped: %d (%d already stored, %d duplicates, %d unique)\n",
		result.Scraped, result.AlreadyKnown, result.Duplicates, result.Unique)
	if result.MovedToPast > 0 {
		fmt.Fprintf(w, "Moved %d conferences to past\n", result.MovedToPast)
	}

	if len(result.Added) == 0 {
		fmt.Fprintln(w, "\nNo new conferences found.")
	} else {
		fmt.Fprintf(w, "\nNew conferences (%d):\n", len(result.Added))
		for _, c := range result.Added {
			fmt.Fprintf(w, "  NEW: %s\n", shorten(c.Title))
			if c.Deadline != "" {
				fmt.Fprintf(w, "       Deadline: %s\n", c.Deadline)
			}
			if c.Dates != "" {
				fmt.Fprintf(w, "       Dates: %s\n", c.Dates)
			}
			if c.Location != "" {
				fmt.Fprintf(w, "       Location: %s\n", c.Location)
			}
		}
	}

	if len(result.Excluded) > 0 {
		fmt.Fprintf(w, "\nExcluded conferences (%d):\n", len(result.Excluded))
		for _, e := range result.Excluded {
			fmt.Fprintf(w, "  - %s [%s]\n", shorten(e.Title), e.Reason)
		}
	}

	fmt.Fprintf(w, "\nActive:   %d conferences\n", result.Active)
	fmt.Fprintf(w, "Past:     %d conferences\n", result.Past)
	fmt.Fprintf(w, "Workbook: %s\n", result.Workbook)
	if result.Notified {
		fmt.Fprintln(w, "Digest sent.")
	}
	return nil
}

func shorten(title string) string {
	if utf8.RuneCountInString(title) <= maxTitleWidth {
		return title
	}
	return string([]rune(title)[:maxTitleWidth]) + "..."
}
