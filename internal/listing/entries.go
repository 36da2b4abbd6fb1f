package listing

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Entry 是目录列表中的一行；Size 对目录为 nil。
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  *int64 `json:"size"`
	URL   string `json:"url"`
}

// Page 是交给渲染器的完整数据：当前路径与排好序的条目。
type Page struct {
	Path    string  `json:"path"`
	Entries []Entry `json:"entries"`
}

// Build 读取 dirAbs 并生成列表：非根目录时首行为 ".."，其后目录在前、文件在后，
// 各自按名称排序。rel 为相对根目录的 slash 路径，用于拼接每个条目的 URL。
func Build(fs afero.Fs, dirAbs, rel string, isRoot bool) (*Page, error) {
	infos, err := afero.ReadDir(fs, dirAbs)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dirAbs, err)
	}

	rel = strings.Trim(rel, "/")
	entries := make([]Entry, 0, len(infos)+1)
	if !isRoot {
		entries = append(entries, Entry{
			Name:  "..",
			IsDir: true,
			URL:   parentURL(rel),
		})
	}

	children := make([]Entry, 0, len(infos))
	for _, info := range infos {
		info = followSymlink(fs, dirAbs, info)
		entry := Entry{
			Name:  info.Name(),
			IsDir: info.IsDir(),
			URL:   EncodeURL(path.Join(rel, info.Name())),
		}
		if !entry.IsDir {
			size := info.Size()
			entry.Size = &size
		}
		children = append(children, entry)
	}
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].IsDir != children[j].IsDir {
			return children[i].IsDir
		}
		return children[i].Name < children[j].Name
	})

	return &Page{
		Path:    "/" + rel,
		Entries: append(entries, children...),
	}, nil
}

// EncodeURL 对 slash 路径逐段做百分号编码，返回以 / 开头的 URL 路径。
func EncodeURL(rel string) string {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return "/"
	}
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segments, "/")
}

func parentURL(rel string) string {
	parent := path.Dir(rel)
	if parent == "." {
		return "/"
	}
	return EncodeURL(parent)
}

// followSymlink 让指向目录的符号链接在列表中表现为目录；目标失效时保留链接本身的信息。
func followSymlink(fs afero.Fs, dir string, info os.FileInfo) os.FileInfo {
	if info.Mode()&os.ModeSymlink == 0 {
		return info
	}
	target, err := fs.Stat(filepath.Join(dir, info.Name()))
	if err != nil {
		return info
	}
	return namedInfo{FileInfo: target, name: info.Name()}
}

type namedInfo struct {
	os.FileInfo
	name string
}

func (n namedInfo) Name() string {
	return n.name
}
