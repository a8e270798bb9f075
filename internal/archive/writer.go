package archive

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/tsarchive/internal/models"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer 将页面原始字节以gzip格式写入归档树
//
// 写入流程:
//  1. MkdirAll 创建目标目录(已存在时静默成功, 并发创建安全)
//  2. 在目标目录中创建临时文件并写入压缩数据
//  3. Sync + Close
//  4. Rename 覆盖目标文件
//
// 目标文件名下永远不会出现写了一半的文件; 同一路径并发写入时后写者生效。
type Writer struct {
	fs    afero.Fs
	level int
}

// NewWriter 创建归档写入器
// level 为gzip压缩级别(-1为默认, 0-9)
func NewWriter(fs afero.Fs, level int) (*Writer, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		return nil, fmt.Errorf("无效的压缩级别 %d: %w", level, err)
	}
	return &Writer{fs: fs, level: level}, nil
}

// Write 压缩并写入 body, 返回写入磁盘的字节数
func (w *Writer) Write(p models.ArchivePath, body []byte) (int64, error) {
	if p.Dir == "" || p.Filename == "" {
		return 0, &models.PersistenceError{Op: "resolve", Path: p.Path(), Cause: fmt.Errorf("归档路径不完整")}
	}

	dir := filepath.FromSlash(strings.TrimSuffix(p.Dir, "/"))
	if err := w.fs.MkdirAll(dir, dirPerm); err != nil {
		return 0, &models.PersistenceError{Op: "mkdir", Path: dir, Cause: err}
	}

	target := filepath.Join(dir, p.Filename)
	return writeAtomic(w.fs, target, func(dst io.Writer) error {
		gz, err := gzip.NewWriterLevel(dst, w.level)
		if err != nil {
			return err
		}
		// 不写入ModTime, 相同输入产生相同的字节
		gz.Name = strings.TrimSuffix(p.Filename, models.CompressedSuffix)
		if _, err := gz.Write(body); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	})
}

// WriteFileAtomic 原子写入普通文件(检查点、报告等)
func WriteFileAtomic(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return &models.PersistenceError{Op: "mkdir", Path: filepath.Dir(path), Cause: err}
	}
	_, err := writeAtomic(fs, path, func(dst io.Writer) error {
		_, err := dst.Write(data)
		return err
	})
	return err
}

// writeAtomic 先写临时文件再重命名
func writeAtomic(fs afero.Fs, target string, fill func(io.Writer) error) (int64, error) {
	dir, base := filepath.Split(target)
	tmp, err := afero.TempFile(fs, dir, "."+base+".tmp-*")
	if err != nil {
		return 0, &models.PersistenceError{Op: "create", Path: target, Cause: err}
	}
	tmpName := tmp.Name()

	cleanup := func(op string, cause error) (int64, error) {
		tmp.Close()
		fs.Remove(tmpName)
		return 0, &models.PersistenceError{Op: op, Path: target, Cause: cause}
	}

	cw := &countingWriter{w: tmp}
	if err := fill(cw); err != nil {
		return cleanup("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup("sync", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return 0, &models.PersistenceError{Op: "close", Path: target, Cause: err}
	}
	// TempFile 以0600创建, 归档文件需要对其他用户可读
	if err := fs.Chmod(tmpName, filePerm); err != nil {
		fs.Remove(tmpName)
		return 0, &models.PersistenceError{Op: "chmod", Path: target, Cause: err}
	}
	if err := fs.Rename(tmpName, target); err != nil {
		fs.Remove(tmpName)
		return 0, &models.PersistenceError{Op: "rename", Path: target, Cause: err}
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
