package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/photo-receipts/internal/links"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
)

// Service is a tiny façade over the registry that produces XLSX bytes for exports.
type Service struct {
	photos repository.PhotoRepository
	origin string
	loc    *time.Location
	logger *slog.Logger
}

// NewService builds an exporter. origin is used for viewing links; loc for dates and times.
func NewService(photos repository.PhotoRepository, origin string, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{photos: photos, origin: origin, loc: loc, logger: logger}
}

// DayRange turns inclusive calendar dates into the [from, to) instants the registry filters on.
// Either bound may be nil.
func (s *Service) DayRange(from, to *time.Time) (*time.Time, *time.Time) {
	var lo, hi *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, s.loc)
		lo = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)
		hi = &t
	}
	return lo, hi
}

// ExportGroupsXLSX returns an XLSX workbook (as bytes) with one row per photo of every receipt
// group taken between the inclusive dates from and to.
func (s *Service) ExportGroupsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	lo, hi := s.DayRange(from, to)
	groups, err := s.photos.ListGroups(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Date",
		"Time",
		"Receipt ID",
		"Position",
		"Photo ID",
		"Retrieval URL",
		"Viewing Link",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, g := range groups {
		at, err := g.Time()
		if err != nil {
			s.logger.Warn("export.group.bad_timestamp", "group_id", g.ID, "timestamp", g.Timestamp)
		}
		view := links.Group(s.origin, g.ID)

		for i, p := range g.Photos {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			if err == nil {
				local := at.In(s.loc)
				write(1, local.Format("2006-01-02"))
				write(2, local.Format("15:04"))
			}
			write(3, g.ID)
			write(4, i+1)
			write(5, p.ID)
			write(6, p.RetrievalURL)
			write(7, view)
			if cell, cerr := excelize.CoordinatesToCellName(7, row); cerr == nil {
				_ = f.SetCellHyperLink(sheet, cell, view, "External")
			}
			row++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "B", 12) // date, time
	_ = f.SetColWidth(sheet, "C", "C", 38) // receipt id
	_ = f.SetColWidth(sheet, "D", "D", 9)  // position
	_ = f.SetColWidth(sheet, "E", "E", 28) // photo id
	_ = f.SetColWidth(sheet, "F", "G", 64) // urls

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"groups", len(groups),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
