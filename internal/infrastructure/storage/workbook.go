package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"ConferenceScanner/internal/dedup"
	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/ports"
)

const (
	ActiveSheet = "Conferences"
	PastSheet   = "Past Conferences"

	activeHeaderColor = "2F5496"
	pastHeaderColor   = "7F7F7F"
)

// Columns lists the workbook header in order.
var Columns = []string{
	"Title", "Submission Deadline", "Conference Dates",
	"Location", "Keynote Speakers", "Description", "Topics", "URL",
}

var columnWidths = []float64{45, 22, 28, 35, 40, 60, 50, 55}

// WorkbookStore persists active and past conferences as two sheets of an
// xlsx workbook.
type WorkbookStore struct {
	path   string
	logger *slog.Logger
}

var _ ports.ConferenceStore = (*WorkbookStore)(nil)

// NewWorkbookStore binds the store to a workbook path.
func NewWorkbookStore(path string, logger *slog.Logger) *WorkbookStore {
	return &WorkbookStore{path: path, logger: logger}
}

// Path returns the workbook location.
func (s *WorkbookStore) Path() string {
	return s.path
}

// Load reads both sheets. A missing workbook yields an empty snapshot.
func (s *WorkbookStore) Load(ctx context.Context) (ports.Snapshot, error) {
	snap := ports.Snapshot{
		KnownTitles: map[string]struct{}{},
		KnownURLs:   map[string]struct{}{},
	}
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		s.debug("workbook not found, starting empty", "path", s.path)
		return snap, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return snap, fmt.Errorf("open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	sheets := map[string]struct{}{}
	for _, name := range f.GetSheetList() {
		sheets[name] = struct{}{}
	}

	for _, target := range []struct {
		sheet string
		list  *[]domain.Conference
	}{
		{sheet: ActiveSheet, list: &snap.Active},
		{sheet: PastSheet, list: &snap.Past},
	} {
		if _, ok := sheets[target.sheet]; !ok {
			continue
		}
		rows, err := f.GetRows(target.sheet)
		if err != nil {
			return snap, fmt.Errorf("read sheet %s: %w", target.sheet, err)
		}
		for _, conf := range parseRows(rows) {
			if conf.Title != "" {
				snap.KnownTitles[dedup.NormalizeTitle(conf.Title)] = struct{}{}
				*target.list = append(*target.list, conf)
			}
			if conf.URL != "" {
				snap.KnownURLs[conf.URL] = struct{}{}
			}
		}
	}

	s.debug("workbook loaded", "path", s.path, "active", len(snap.Active), "past", len(snap.Past), "urls", len(snap.KnownURLs))
	return snap, nil
}

// parseRows maps data rows by header name. Rows may be shorter than the header.
func parseRows(rows [][]string) []domain.Conference {
	if len(rows) < 2 {
		return nil
	}
	index := map[string]int{}
	for i, h := range rows[0] {
		index[strings.TrimSpace(h)] = i
	}
	cell := func(row []string, header string) string {
		i, ok := index[header]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]domain.Conference, 0, len(rows)-1)
	for _, row := range rows[1:] {
		conf := domain.Conference{
			Title:              cell(row, "Title"),
			SubmissionDeadline: cell(row, "Submission Deadline"),
			ConferenceDates:    cell(row, "Conference Dates"),
			Location:           cell(row, "Location"),
			KeynoteSpeakers:    cell(row, "Keynote Speakers"),
			Description:        cell(row, "Description"),
			Topics:             cell(row, "Topics"),
			URL:                cell(row, "URL"),
		}
		conf.Deadline = domain.ParseDeadline(conf.SubmissionDeadline)
		out = append(out, conf)
	}
	return out
}

// Save rewrites the workbook with both lists. The file is replaced atomically.
func (s *WorkbookStore) Save(ctx context.Context, active, past []domain.Conference) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ActiveSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSheet(f, ActiveSheet, active, activeHeaderColor); err != nil {
		return err
	}
	if _, err := f.NewSheet(PastSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", PastSheet, err)
	}
	if err := writeSheet(f, PastSheet, past, pastHeaderColor); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := s.writeAtomically(f); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("workbook saved", "path", s.path, "active", len(active), "past", len(past))
	}
	return nil
}

func (s *WorkbookStore) writeAtomically(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workbook dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".conferences-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace workbook %s: %w", s.path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, confs []domain.Conference, headerColor string) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Calibri", Bold: true, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Calibri", Size: 10},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorder(),
	})
	if err != nil {
		return fmt.Errorf("body style: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, name := range Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header of %s: %w", sheet, err)
	}

	for i, c := range confs {
		row := []interface{}{
			c.Title,
			domain.FormatDeadline(c),
			c.ConferenceDates,
			c.Location,
			c.KeynoteSpeakers,
			c.Description,
			c.Topics,
			c.URL,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+2, sheet, err)
		}
	}
	if len(confs) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(Columns), len(confs)+1)
		if err := f.SetCellStyle(sheet, "A2", last, bodyStyle); err != nil {
			return fmt.Errorf("style rows of %s: %w", sheet, err)
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("column width of %s: %w", sheet, err)
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func thinBorder() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{Type: side, Color: "000000", Style: 1}
	}
	return borders
}

func (s *WorkbookStore) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
