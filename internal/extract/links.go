package extract

import "strings"

const (
	// DefaultTeaserSelector 按日索引页上的文章链接
	DefaultTeaserSelector = "a.teaser-xs__link"

	// DefaultTeaserAttr 链接属性
	DefaultTeaserAttr = "href"
)

// LinkExtractor 从索引页提取文章链接
type LinkExtractor struct {
	sel  *Selector
	attr string
}

// NewLinkExtractor 创建链接提取器
func NewLinkExtractor(sel *Selector, attr string) *LinkExtractor {
	if attr == "" {
		attr = DefaultTeaserAttr
	}
	return &LinkExtractor{sel: sel, attr: attr}
}

// Extract 按文档顺序返回链接, 空值被丢弃, 重复值保留
// 没有匹配时返回空切片(某些日期的索引页本来就是空的)
func (e *LinkExtractor) Extract(doc *Document) []string {
	var links []string
	for _, v := range doc.Attrs(e.sel, e.attr) {
		if v = strings.TrimSpace(v); v != "" {
			links = append(links, v)
		}
	}
	return links
}
