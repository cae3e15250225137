// Package catalog 读写持久化的 CSV 目录表。
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/mediacat/internal/domain"
)

// Catalog 是按加入顺序保存的 name -> MediaRecord 映射。
// 只增不改：同名记录以第一次出现的为准。
type Catalog struct {
	order   []string
	records map[string]domain.MediaRecord
}

func New() *Catalog {
	return &Catalog{records: make(map[string]domain.MediaRecord)}
}

// Add 加入一条记录；name 为空或已存在时返回 false。
func (c *Catalog) Add(r domain.MediaRecord) bool {
	if r.Name == "" {
		return false
	}
	if _, ok := c.records[r.Name]; ok {
		return false
	}
	c.records[r.Name] = r
	c.order = append(c.order, r.Name)
	return true
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.records[name]
	return ok
}

func (c *Catalog) Len() int { return len(c.order) }

// Records 按加入顺序返回所有记录。
func (c *Catalog) Records() []domain.MediaRecord {
	out := make([]domain.MediaRecord, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.records[n])
	}
	return out
}

// Load 读取 path 处的目录表。
//
// 约束：
// - 文件不存在：返回空目录表（不是错误）
// - 读取/解析失败：记录日志并返回空目录表（下一次运行会把文件当作“全部未收录”）
// - name 列为空的行跳过；重复 name 只保留第一行
// - name 统一为 NFC，与扫描侧保持一致
func Load(path string, logger zerolog.Logger) *Catalog {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Str("path", path).Msg("读取目录表失败，按空目录表处理")
		}
		return New()
	}
	defer f.Close()

	c, err := Read(f)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("解析目录表失败，按空目录表处理")
		return New()
	}
	logger.Debug().Str("path", path).Int("records", c.Len()).Msg("已加载目录表")
	return c
}

// Read 从 r 解析目录表（按表头列名取值，不依赖列顺序）。
func Read(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(), nil
		}
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("表头缺少 name 列")
	}

	c := New()
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		rec := domain.RecordFromFields(get)
		// 与扫描侧 domain.NameOf 完全一致：只做 NFC，不裁剪空白。
		rec.Name = domain.NormalizeName(rec.Name)
		c.Add(rec)
	}
	return c, nil
}
