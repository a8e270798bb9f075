// Package archive 负责归档路径计算和压缩文件写入
package archive

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/RecoveryAshes/tsarchive/internal/models"
)

// DefaultRoot 默认归档根目录
const DefaultRoot = "archive"

var (
	// ErrMalformedURL URL无法解析或不是绝对URL
	ErrMalformedURL = errors.New("URL格式无效")

	// ErrNonContentPage URL最后一段为空(目录URL), 不是内容页
	ErrNonContentPage = errors.New("非内容页面")

	// ErrUnsafePath URL路径包含 ".." 等会逃逸出归档根目录的片段
	ErrUnsafePath = errors.New("不安全的URL路径")
)

// PathResolver 根据 (URL, 时间戳) 计算归档路径
// 纯函数: 不做任何I/O, 相同输入总是得到相同输出
type PathResolver struct {
	root string
}

// NewPathResolver 创建路径解析器, root 为空时使用 DefaultRoot
func NewPathResolver(root string) *PathResolver {
	root = strings.TrimRight(strings.ReplaceAll(root, "\\", "/"), "/")
	if root == "" {
		root = DefaultRoot
	}
	return &PathResolver{root: root}
}

// Root 返回归档根目录
func (r *PathResolver) Root() string {
	return r.root
}

// Resolve 计算归档路径
//
//	目录:   <root>/<分区>/<URL路径前缀>/
//	文件名: <URL最后一段>.gz
//
// 分区为 <y>/<y>-<m>/<y>-<m>-<d>, 时间戳未知时为 unknown。
// URL路径前缀是主机名之后、最后一个 '/' 之前的部分。
func (r *PathResolver) Resolve(rawURL string, ts models.ArchiveTimestamp) (models.ArchivePath, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.ArchivePath{}, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if u.Host == "" {
		return models.ArchivePath{}, fmt.Errorf("%w: 缺少主机名: %s", ErrMalformedURL, rawURL)
	}

	segments, err := splitPath(u.Path)
	if err != nil {
		return models.ArchivePath{}, err
	}

	name := PageName(u)
	if name == "" {
		return models.ArchivePath{}, fmt.Errorf("%w: %s", ErrNonContentPage, rawURL)
	}

	prefix := path.Join(segments[:len(segments)-1]...)
	dir := path.Join(r.root, ts.Partition(), prefix) + "/"

	return models.ArchivePath{
		Dir:      dir,
		Filename: name + models.CompressedSuffix,
	}, nil
}

// PageName 返回URL路径的最后一段, 目录URL(以 '/' 结尾)返回空字符串
func PageName(u *url.URL) string {
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	name := p[strings.LastIndex(p, "/")+1:]
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// splitPath 按 '/' 拆分URL路径, 丢弃空片段和 "."
func splitPath(p string) ([]string, error) {
	raw := strings.Split(p, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		switch s {
		case "", ".":
			continue
		case "..":
			return nil, fmt.Errorf("%w: %s", ErrUnsafePath, p)
		}
		if strings.ContainsAny(s, "\\\x00") {
			return nil, fmt.Errorf("%w: %s", ErrUnsafePath, p)
		}
		segments = append(segments, s)
	}
	if len(segments) == 0 {
		segments = append(segments, "")
	}
	return segments, nil
}
