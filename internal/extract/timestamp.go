package extract

import (
	"regexp"
	"strconv"

	"github.com/RecoveryAshes/tsarchive/internal/models"
)

// DefaultStandSelector 文章页"Stand"行所在的元素
const DefaultStandSelector = "div.metatextline"

// standDate 匹配 DD.MM.YYYY, 前面可以有星期或 "Stand:" 之类的标签
// 数字边界在匹配后单独检查, 相邻的两个日期之间只隔一个字符时也能逐个尝试
var standDate = regexp.MustCompile(`([0-9]{1,2})\.([0-9]{1,2})\.([0-9]{4})`)

// TimestampExtractor 从文章页提取归档日期
type TimestampExtractor struct {
	sel *Selector
}

// NewTimestampExtractor 创建时间戳提取器
func NewTimestampExtractor(sel *Selector) *TimestampExtractor {
	return &TimestampExtractor{sel: sel}
}

// Extract 返回页面的归档日期
// 找不到标记或标记中没有合法日期时返回 unknown, 从不失败
func (e *TimestampExtractor) Extract(doc *Document) models.ArchiveTimestamp {
	text, ok := doc.FirstText(e.sel)
	if !ok {
		return models.UnknownTimestamp()
	}
	return ParseStand(text)
}

// ParseStand 从"Stand"文本中解析第一个合法的 DD.MM.YYYY 日期
func ParseStand(text string) models.ArchiveTimestamp {
	for _, m := range standDate.FindAllStringSubmatchIndex(text, -1) {
		if isDigitAt(text, m[0]-1) || isDigitAt(text, m[1]) {
			continue
		}
		d, _ := strconv.Atoi(text[m[2]:m[3]])
		mo, _ := strconv.Atoi(text[m[4]:m[5]])
		y, _ := strconv.Atoi(text[m[6]:m[7]])
		if ts, err := models.NewArchiveTimestamp(y, mo, d); err == nil {
			return ts
		}
	}
	return models.UnknownTimestamp()
}

func isDigitAt(s string, i int) bool {
	return i >= 0 && i < len(s) && s[i] >= '0' && s[i] <= '9'
}
