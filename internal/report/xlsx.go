// Package report renders a meeting session's enrichment output — the
// key-point log and the speaker directory — into an XLSX workbook suitable
// for sharing as meeting minutes.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/minrelay/minrelay/internal/keypoint"
	"github.com/minrelay/minrelay/internal/speaker"
)

const (
	keypointSheet = "Key Points"
	speakerSheet  = "Speakers"

	timeLayout = "2006-01-02 15:04:05"
)

// Write renders items and speakers into an XLSX workbook at path,
// overwriting any existing file. Speaker tags in the key-point sheet are
// replaced by resolved display names when the directory knows them.
func Write(path string, items []keypoint.Item, speakers []speaker.Identity) error {
	f := excelize.NewFile()
	defer f.Close()

	names := make(map[string]string, len(speakers))
	for _, s := range speakers {
		if s.DisplayName != "" {
			names[s.SpeakerTag] = s.DisplayName
		}
	}

	if err := writeKeypointSheet(f, items, names); err != nil {
		return err
	}
	if err := writeSpeakerSheet(f, speakers); err != nil {
		return err
	}

	// Drop the default sheet created by NewFile.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("report: delete default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %q: %w", path, err)
	}
	return nil
}

func writeKeypointSheet(f *excelize.File, items []keypoint.Item, names map[string]string) error {
	if _, err := f.NewSheet(keypointSheet); err != nil {
		return fmt.Errorf("report: create sheet: %w", err)
	}

	header := []any{"Time", "Speaker", "Point", "Action Item", "Suggested By", "Needs Follow-up"}
	if err := f.SetSheetRow(keypointSheet, "A1", &header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}

	for i, it := range items {
		row := []any{
			it.Timestamp.UTC().Format(timeLayout),
			displayFor(it.SpeakerTag, names),
			it.Text,
			yesNo(it.IsActionItem),
			displayFor(it.SuggestedBy, names),
			yesNo(it.NeedsFollowUp),
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(keypointSheet, cell, &row); err != nil {
			return fmt.Errorf("report: write row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeSpeakerSheet(f *excelize.File, speakers []speaker.Identity) error {
	if _, err := f.NewSheet(speakerSheet); err != nil {
		return fmt.Errorf("report: create sheet: %w", err)
	}

	header := []any{"Tag", "Name", "Job Title", "Last Updated (UTC)"}
	if err := f.SetSheetRow(speakerSheet, "A1", &header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}

	for i, s := range speakers {
		row := []any{
			s.SpeakerTag,
			s.DisplayName,
			s.JobTitle,
			s.LastUpdatedUTC.UTC().Format(timeLayout),
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(speakerSheet, cell, &row); err != nil {
			return fmt.Errorf("report: write row %d: %w", i+2, err)
		}
	}
	return nil
}

// displayFor resolves a speaker tag to its known display name, keeping the
// raw tag when the directory has no resolution for it.
func displayFor(tag string, names map[string]string) string {
	if name, ok := names[tag]; ok {
		return name
	}
	return tag
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Filename returns a report filename for the given session start time, e.g.
// "minutes-2026-08-31-1504.xlsx". Useful for callers that configure a
// directory rather than a full path.
func Filename(start time.Time) string {
	return "minutes-" + start.UTC().Format("2006-01-02-1504") + ".xlsx"
}
