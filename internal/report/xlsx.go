package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary   = "汇总"
	sheetPresent   = "出勤"
	sheetAbsent    = "缺勤"
	sheetUnmatched = "未在花名册"
)

type xlsxRenderer struct{}

func (xlsxRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (xlsxRenderer) Extension() string { return FormatXLSX }

// Render 输出四个 Sheet：汇总 / 出勤 / 缺勤 / 未在花名册
func (xlsxRenderer) Render(d *Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("创建样式失败: %w", err)
	}

	// 默认 Sheet1 重命名为汇总页
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	f.SetColWidth(sheetSummary, "A", "A", 16)
	f.SetColWidth(sheetSummary, "B", "B", 40)
	f.SetCellValue(sheetSummary, "A1", fmt.Sprintf("签到报表（班级 %s）", d.Section))
	f.MergeCell(sheetSummary, "A1", "B1")
	f.SetCellStyle(sheetSummary, "A1", "B1", headerStyle)
	for i, row := range summaryRows(d) {
		f.SetCellValue(sheetSummary, cell("A", i+2), row[0])
		f.SetCellValue(sheetSummary, cell("B", i+2), row[1])
	}

	lists := []struct {
		sheet string
		rolls []string
	}{
		{sheetPresent, d.Present},
		{sheetAbsent, d.Absent},
		{sheetUnmatched, d.Unmatched},
	}
	for _, l := range lists {
		if _, err := f.NewSheet(l.sheet); err != nil {
			return nil, err
		}
		f.SetColWidth(l.sheet, "A", "A", 8)
		f.SetColWidth(l.sheet, "B", "B", 20)
		f.SetCellValue(l.sheet, "A1", "序号")
		f.SetCellValue(l.sheet, "B1", "学号")
		f.SetCellStyle(l.sheet, "A1", "B1", headerStyle)
		for i, roll := range l.rolls {
			f.SetCellValue(l.sheet, cell("A", i+2), i+1)
			f.SetCellValue(l.sheet, cell("B", i+2), roll)
		}
	}
	f.SetActiveSheet(0)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("写入 Excel 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
