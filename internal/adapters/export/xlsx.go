// Package export writes member lists as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"dojo/internal/domain/member"
)

const membersSheet = "Members"

// MemberHeader is the first row of the member export.
var MemberHeader = []string{
	"Membership Number",
	"First Name",
	"Last Name",
	"Program",
	"Status",
	"Email",
	"Phone",
	"Date of Birth",
	"Joined",
}

var memberColumnWidths = []float64{18, 18, 18, 10, 10, 30, 16, 14, 14}

// WriteMembers writes one row per member to w as an XLSX workbook.
// POST: row 1 is MemberHeader; members follow in the given order
func WriteMembers(w io.Writer, members []member.Member) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(membersSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(MemberHeader))
	for i, h := range MemberHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(membersSheet, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(MemberHeader))
	if err := f.SetCellStyle(membersSheet, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	for i, width := range memberColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(membersSheet, col, col, width); err != nil {
			return err
		}
	}

	for i, m := range members {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			m.MembershipNumber,
			m.FirstName,
			m.LastName,
			m.Program,
			m.Status,
			m.Email,
			m.Phone,
			m.DateOfBirth.Format("2006-01-02"),
			m.CreatedAt.Format("2006-01-02"),
		}
		if err := f.SetSheetRow(membersSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(membersSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
