package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/photo-receipts/internal/entity"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
)

func TestExportGroupsXLSX(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository(nil)
	day1 := time.Date(2024, 5, 4, 18, 30, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 2)

	put := func(id string, at time.Time, photoIDs ...string) {
		g := entity.Group{ID: id, Timestamp: entity.FormatTimestamp(at)}
		for _, pid := range photoIDs {
			g.Photos = append(g.Photos, entity.Photo{ID: pid, RetrievalURL: "https://res.cloudinary.com/demo/" + pid + ".jpg", Timestamp: g.Timestamp})
		}
		if err := repo.Put(ctx, repository.PutRequest{Photo: g.Photos[0], Group: &g}); err != nil {
			t.Fatal(err)
		}
	}
	put("g1", day1, "a", "b")
	put("g2", day2, "c")

	svc := NewService(repo, "https://booth.example.com", time.UTC, nil)

	tests := []struct {
		name     string
		from, to *time.Time
		wantRows int
		firstID  string
	}{
		{"all", nil, nil, 3, "g1"},
		{"first day only", &day1, &day1, 2, "g1"},
		{"from second day", &day2, nil, 1, "g2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := svc.ExportGroupsXLSX(ctx, tt.from, tt.to)
			if err != nil {
				t.Fatalf("ExportGroupsXLSX() failed: %v", err)
			}
			f, err := excelize.OpenReader(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("open workbook: %v", err)
			}
			defer f.Close()
			rows, err := f.GetRows("Receipts")
			if err != nil {
				t.Fatal(err)
			}
			if len(rows)-1 != tt.wantRows {
				t.Fatalf("rows = %d, want %d", len(rows)-1, tt.wantRows)
			}
			if rows[0][0] != "Date" || rows[1][2] != tt.firstID {
				t.Errorf("unexpected rows: %v", rows[:2])
			}
			if got := rows[1][6]; got != "https://booth.example.com/photo/"+tt.firstID+"?receiptId="+tt.firstID {
				t.Errorf("viewing link = %q", got)
			}
		})
	}
}
