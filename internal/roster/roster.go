package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"bytecopied/backend/config"
)

// ErrRosterUnavailable 花名册缺失、无法读取或为空
var ErrRosterUnavailable = errors.New("花名册不可用")

// Source 花名册数据源
// 返回规范化后的学号列表，保持文件中的先后顺序且无重复
type Source interface {
	Load(ctx context.Context, section string) ([]string, error)
}

// Loader 从本地目录读取班级花名册
//
// 文件布局：
//   - <dir>/<file_pattern>，默认 section<N>.xlsx
//   - 第一个工作表第一列为学号，首行为表头
//   - 同名 .csv 文件作为后备，布局相同
type Loader struct {
	dir     string
	pattern string
	logger  *zap.Logger
}

// NewLoader 创建 Loader 实例
func NewLoader(cfg *config.RosterConfig, logger *zap.Logger) *Loader {
	return &Loader{dir: cfg.Dir, pattern: cfg.FilePattern, logger: logger}
}

// Normalize 学号规范化：去除首尾空白并转大写
func Normalize(roll string) string {
	return strings.ToUpper(strings.TrimSpace(roll))
}

// Load 读取指定班级的花名册
func (l *Loader) Load(ctx context.Context, section string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if section == "" || strings.ContainsAny(section, `/\`) || strings.Contains(section, "..") {
		return nil, fmt.Errorf("%w: 班级 %q 非法", ErrRosterUnavailable, section)
	}

	path := filepath.Join(l.dir, fmt.Sprintf(l.pattern, section))

	var (
		cells [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		cells, err = readCSV(path)
	default:
		cells, err = readXLSX(path)
		if errors.Is(err, os.ErrNotExist) {
			// xlsx 不存在时尝试同名 csv
			cells, err = readCSV(strings.TrimSuffix(path, filepath.Ext(path)) + ".csv")
		}
	}
	if err != nil {
		l.logger.Warn("读取花名册失败",
			zap.String("section", section),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: 班级 %s", ErrRosterUnavailable, section)
	}

	rolls := collect(cells)
	if len(rolls) == 0 {
		return nil, fmt.Errorf("%w: 班级 %s 花名册为空", ErrRosterUnavailable, section)
	}
	return rolls, nil
}

// collect 跳过表头，取每行第一列，去空去重
func collect(rows [][]string) []string {
	seen := make(map[string]struct{}, len(rows))
	rolls := make([]string, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		roll := Normalize(row[0])
		if roll == "" {
			continue
		}
		if _, dup := seen[roll]; dup {
			continue
		}
		seen[roll] = struct{}{}
		rolls = append(rolls, roll)
	}
	return rolls
}

func readXLSX(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("工作簿不含工作表")
	}
	return f.GetRows(sheets[0])
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
