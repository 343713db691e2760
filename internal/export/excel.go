package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/interview-portal/internal/models"
)

const (
	summarySheet    = "Summary"
	candidatesSheet = "Ranked Candidates"
	detailsSheet    = "Detailed Analysis"
	interviewsSheet = "Interviews"
)

// ContentType is the MIME type of the workbook written by WriteJobReport
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Band is a score range with its fill color
type Band struct {
	Label string
	Min   float64
	Color string
}

// Bands classify total screening scores, highest first
var Bands = []Band{
	{Label: "Excellent (90-100)", Min: 90, Color: "C6EFCE"},
	{Label: "Good (70-89)", Min: 70, Color: "FFEB9C"},
	{Label: "Fair (50-69)", Min: 50, Color: "FFC7CE"},
	{Label: "Poor (<50)", Min: 0, Color: "FF9999"},
}

// BandFor returns the index in Bands of score
func BandFor(score float64) int {
	for i, b := range Bands {
		if score >= b.Min {
			return i
		}
	}
	return len(Bands) - 1
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

var frozenHeader = &excelize.Panes{
	Freeze:      true,
	YSplit:      1,
	TopLeftCell: "A2",
	ActivePane:  "bottomLeft",
}

// WriteJobReport writes a workbook with the screening ranking of a job and
// the completed interviews of its applicants
func WriteJobReport(w io.Writer, report *models.ScreeningReport, sessions []*models.InterviewSession, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	for _, name := range []string{candidatesSheet, detailsSheet, interviewsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create %s sheet: %w", name, err)
		}
	}

	if err := writeSummarySheet(f, report, sessions, generated); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeRankedCandidatesSheet(f, report.Applicants); err != nil {
		return fmt.Errorf("failed to create ranked candidates sheet: %w", err)
	}
	if err := writeDetailedAnalysisSheet(f, report.Applicants); err != nil {
		return fmt.Errorf("failed to create detailed analysis sheet: %w", err)
	}
	if err := writeInterviewsSheet(f, report.Applicants, sessions); err != nil {
		return fmt.Errorf("failed to create interviews sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
}

func writeHeaders(f *excelize.File, sheet string, headers []string) error {
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	return f.SetPanes(sheet, frozenHeader)
}

func writeSummarySheet(f *excelize.File, report *models.ScreeningReport, sessions []*models.InterviewSession, generated time.Time) error {
	sheet := summarySheet
	f.SetColWidth(sheet, "A", "A", 30)
	f.SetColWidth(sheet, "B", "B", 50)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	section := func(title string) {
		a, b := fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row)
		f.SetCellValue(sheet, a, title)
		f.SetCellStyle(sheet, a, b, titleStyle)
		f.MergeCell(sheet, a, b)
		row++
	}
	line := func(label string, value any) {
		a := fmt.Sprintf("A%d", row)
		f.SetCellValue(sheet, a, label)
		f.SetCellStyle(sheet, a, a, labelStyle)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), value)
		row++
	}

	section("Applicant Screening Report")
	row++
	line("Job Title:", report.JobTitle)
	line("Generated:", generated.Format("2006-01-02 15:04:05"))
	line("Candidates Scored:", len(report.Applicants))
	line("Applications Skipped:", report.Skipped)
	line("Completed Interviews:", len(sessions))
	if report.Skipped > 0 {
		line("Note:", "Skipped applications have no readable resume text (scanned images, unsupported formats or no upload).")
	}
	row++

	if len(report.Applicants) == 0 {
		return nil
	}

	section("Statistics")
	counts := make([]int, len(Bands))
	var total float64
	minScore, maxScore := report.Applicants[0].Scores.TotalScore, report.Applicants[0].Scores.TotalScore
	withCL := 0
	for _, r := range report.Applicants {
		s := r.Scores.TotalScore
		counts[BandFor(s)]++
		total += s
		minScore = min(minScore, s)
		maxScore = max(maxScore, s)
		if r.Scores.CoverLetterScore > 0 {
			withCL++
		}
	}
	for i, b := range Bands {
		line(b.Label+":", counts[i])
	}
	row++
	line("Average Score:", fmt.Sprintf("%.2f", total/float64(len(report.Applicants))))
	line("Highest Score:", fmt.Sprintf("%.2f", maxScore))
	line("Lowest Score:", fmt.Sprintf("%.2f", minScore))
	line("Score Range:", fmt.Sprintf("%.2f", maxScore-minScore))
	line("Candidates with Cover Letter:", withCL)
	line("Candidates without Cover Letter:", len(report.Applicants)-withCL)

	return nil
}

func writeRankedCandidatesSheet(f *excelize.File, results []models.ApplicantResult) error {
	sheet := candidatesSheet
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 25)
	f.SetColWidth(sheet, "C", "H", 15)

	headers := []string{"Rank", "Candidate", "Total Score", "Experience", "Education", "Duties", "Cover Letter", "Interview Score"}
	if err := writeHeaders(f, sheet, headers); err != nil {
		return err
	}

	bandStyles := make([]int, len(Bands))
	for i, b := range Bands {
		style, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{b.Color}, Pattern: 1},
			Border: thinBorder,
		})
		if err != nil {
			return err
		}
		bandStyles[i] = style
	}

	for i, r := range results {
		row := i + 2
		values := []any{
			r.Rank,
			r.Name,
			fmt.Sprintf("%.2f", r.Scores.TotalScore),
			fmt.Sprintf("%.2f", r.Scores.ExperienceScore),
			fmt.Sprintf("%.2f", r.Scores.EducationScore),
			fmt.Sprintf("%.2f", r.Scores.DutiesScore),
			fmt.Sprintf("%.2f", r.Scores.CoverLetterScore),
			"",
		}
		if r.InterviewID != "" {
			values[7] = fmt.Sprintf("%.2f", r.Interview)
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), bandStyles[BandFor(r.Scores.TotalScore)])
	}

	if len(results) > 0 {
		return f.AutoFilter(sheet, fmt.Sprintf("A1:H%d", len(results)+1), []excelize.AutoFilterOptions{})
	}
	return nil
}

func writeDetailedAnalysisSheet(f *excelize.File, results []models.ApplicantResult) error {
	sheet := detailsSheet
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 25)
	f.SetColWidth(sheet, "C", "C", 20)
	f.SetColWidth(sheet, "D", "D", 60)

	if err := writeHeaders(f, sheet, []string{"Rank", "Candidate", "Category", "Reasoning"}); err != nil {
		return err
	}

	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	row := 2
	for _, r := range results {
		for _, c := range []struct{ category, reasoning string }{
			{"Experience", r.Scores.ExperienceReasoning},
			{"Education", r.Scores.EducationReasoning},
			{"Duties", r.Scores.DutiesReasoning},
			{"Cover Letter", r.Scores.CoverLetterReasoning},
		} {
			values := []any{r.Rank, r.Name, c.category, c.reasoning}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &values); err != nil {
				return err
			}
			f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), wrapStyle)
			f.SetRowHeight(sheet, row, 60)
			row++
		}
	}
	return nil
}

func writeInterviewsSheet(f *excelize.File, results []models.ApplicantResult, sessions []*models.InterviewSession) error {
	sheet := interviewsSheet
	f.SetColWidth(sheet, "A", "A", 25)
	f.SetColWidth(sheet, "B", "B", 38)
	f.SetColWidth(sheet, "C", "F", 16)
	f.SetColWidth(sheet, "G", "G", 24)
	f.SetColWidth(sheet, "H", "H", 60)

	headers := []string{"Candidate", "Session", "Mode", "Overall Score", "Answered", "Timed Out", "Recommendation", "Feedback"}
	if err := writeHeaders(f, sheet, headers); err != nil {
		return err
	}

	names := make(map[string]string, len(results))
	for _, r := range results {
		if r.InterviewID != "" {
			names[r.InterviewID] = r.Name
		}
	}

	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	for i, s := range sessions {
		row := i + 2
		answered, timedOut := 0, 0
		for _, a := range s.Answers {
			if !a.Empty() {
				answered++
			}
			if a.TimedOut {
				timedOut++
			}
		}
		name := names[s.ID]
		if name == "" {
			name = s.CandidateID
		}
		values := []any{
			name,
			s.ID,
			string(s.Mode),
			fmt.Sprintf("%.2f", s.OverallScore),
			fmt.Sprintf("%d/%d", answered, len(s.Questions)),
			timedOut,
			s.Recommendation,
			s.Feedback,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), wrapStyle)
	}
	return nil
}
