// Package extract 提供对已抓取页面的结构化查询
//
// 选择器既可以是CSS(goquery/cascadia), 也可以是XPath(htmlquery),
// 以 "/" 或 "(" 开头的表达式按XPath处理。选择器在配置加载时编译,
// 站点改版时只需修改配置。
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Selector 已编译的CSS或XPath选择器
type Selector struct {
	expr string
	css  cascadia.Selector
	xp   *xpath.Expr
}

// NewSelector 编译选择器表达式
func NewSelector(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("选择器不能为空")
	}

	if isXPath(expr) {
		xp, err := xpath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("无效的XPath表达式 %q: %w", expr, err)
		}
		return &Selector{expr: expr, xp: xp}, nil
	}

	css, err := cascadia.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("无效的CSS选择器 %q: %w", expr, err)
	}
	return &Selector{expr: expr, css: css}, nil
}

// IsXPath 是否为XPath选择器
func (s *Selector) IsXPath() bool {
	return s.xp != nil
}

// String 返回原始表达式
func (s *Selector) String() string {
	return s.expr
}

func isXPath(expr string) bool {
	return strings.HasPrefix(expr, "/") || strings.HasPrefix(expr, "(") || strings.HasPrefix(expr, "./")
}

// Document 解析后的HTML文档
type Document struct {
	root *html.Node
	gq   *goquery.Document
}

// Parse 解析HTML字节
// HTML解析器对残缺标记是宽容的, 只有读取失败才会返回错误
func Parse(body []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	return &Document{root: root, gq: goquery.NewDocumentFromNode(root)}, nil
}

// Nodes 返回匹配选择器的所有节点(文档顺序)
func (d *Document) Nodes(sel *Selector) []*html.Node {
	if sel.IsXPath() {
		return htmlquery.QuerySelectorAll(d.root, sel.xp)
	}
	return d.gq.FindMatcher(sel.css).Nodes
}

// Attrs 返回匹配元素的属性值
// XPath直接选中属性时(如 //a[@class="x"]/@href), attr 与属性名相同即返回其值
func (d *Document) Attrs(sel *Selector, attr string) []string {
	var values []string
	for _, n := range d.Nodes(sel) {
		if v, ok := attrValue(n, attr); ok {
			values = append(values, v)
			continue
		}
		if sel.IsXPath() && n.Type == html.ElementNode && n.Data == attr && len(n.Attr) == 0 {
			values = append(values, htmlquery.InnerText(n))
		}
	}
	return values
}

// FirstText 返回第一个匹配元素的文本内容
func (d *Document) FirstText(sel *Selector) (string, bool) {
	if sel.IsXPath() {
		n := htmlquery.QuerySelector(d.root, sel.xp)
		if n == nil {
			return "", false
		}
		return htmlquery.InnerText(n), true
	}

	first := d.gq.FindMatcher(sel.css).First()
	if first.Length() == 0 {
		return "", false
	}
	return first.Text(), true
}

func attrValue(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
