package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

type csvRenderer struct{}

func (csvRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (csvRenderer) Extension() string { return FormatCSV }

// Render 先输出汇总键值行，空行之后为明细：序号,学号,状态
func (csvRenderer) Render(d *Data) ([]byte, error) {
	buf := new(bytes.Buffer)
	// UTF-8 BOM，Excel 打开中文表头不乱码
	buf.WriteString("\xEF\xBB\xBF")

	w := csv.NewWriter(buf)
	for _, row := range summaryRows(d) {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	if err := w.Write(nil); err != nil {
		return nil, err
	}
	if err := w.Write([]string{"序号", "学号", "状态"}); err != nil {
		return nil, err
	}

	n := 0
	write := func(rolls []string, status string) error {
		for _, roll := range rolls {
			n++
			if err := w.Write([]string{fmt.Sprint(n), roll, status}); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write(d.Present, "present"); err != nil {
		return nil, err
	}
	if err := write(d.Absent, "absent"); err != nil {
		return nil, err
	}
	if err := write(d.Unmatched, "unmatched"); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("写入 CSV 失败: %w", err)
	}
	return buf.Bytes(), nil
}
