package pathutil

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidEncoding 表示请求路径无法完成百分号解码或不是合法 UTF-8。
	ErrInvalidEncoding = errors.New("invalid path encoding")
	// ErrNotFound 表示路径在规范化阶段即不存在（或无法访问）。
	ErrNotFound = errors.New("path not found")
	// ErrTraversal 表示规范化后的路径逃逸出根目录。
	ErrTraversal = errors.New("path escapes root directory")
)

// Resolved 是一次请求内有效的规范化路径，不跨请求缓存。
type Resolved struct {
	// Abs 为去除符号链接后的绝对路径，保证位于根目录内。
	Abs string
	// Rel 为相对根目录的 slash 路径（根目录为空串），用于目录列表拼接 URL。
	Rel string
}

// Resolver 将 URL 路径映射到根目录下的真实文件。
type Resolver struct {
	root string
}

// NewResolver 在启动阶段规范化根目录，根目录必须存在且为目录。
func NewResolver(root string) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root directory required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalize root: %w", err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", canonical)
	}
	return &Resolver{root: canonical}, nil
}

// Root 返回规范化后的根目录。
func (r *Resolver) Root() string {
	return r.root
}

// Resolve 解码 raw（仍为百分号编码的 URL 路径），并在真实文件系统上规范化。
// 越界检查必须发生在 EvalSymlinks 之后，仅检查 ".." 无法防住符号链接。
func (r *Resolver) Resolve(raw string) (Resolved, error) {
	decoded, err := Decode(raw)
	if err != nil {
		return Resolved{}, err
	}

	rel := strings.TrimLeft(decoded, "/")
	// 不能用 filepath.Join：它会先按字面消去 ".."，而 "link/.." 应该回到链接目标的父目录
	joined := r.root + string(filepath.Separator) + filepath.FromSlash(rel)
	canonical, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, decoded)
	}
	inside, ok := r.relative(canonical)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %s", ErrTraversal, decoded)
	}
	return Resolved{Abs: canonical, Rel: inside}, nil
}

// IsRoot 判断规范化结果是否就是根目录本身。
func (r *Resolver) IsRoot(p Resolved) bool {
	return p.Abs == r.root
}

// relative 做逐段前缀比较，返回 canonical 相对根目录的 slash 路径。
func (r *Resolver) relative(canonical string) (string, bool) {
	rel, err := filepath.Rel(r.root, canonical)
	if err != nil || filepath.IsAbs(rel) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Decode 对 URL 路径做百分号解码并校验 UTF-8。
func Decode(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if !utf8.ValidString(decoded) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEncoding, raw)
	}
	return decoded, nil
}
