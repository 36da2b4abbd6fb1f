package delivery

import (
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// sniffLimit 与 mimetype 默认读取上限一致，缓存路径与流式路径嗅探同样长度的文件头。
const sniffLimit = 3072

// Header 是两条交付路径共用的响应头。同一个文件无论命中缓存还是流式传输，
// 生成的头部完全一致。
type Header struct {
	ContentType        string
	ContentLength      int64
	ContentDisposition string
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func buildHeader(name string, size int64, head []byte) Header {
	return Header{
		ContentType:        contentType(name, head),
		ContentLength:      size,
		ContentDisposition: attachment(name),
	}
}

// extensionType 按扩展名推断 Content-Type，未知时返回空串。
func extensionType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(strings.ToLower(ext))
}

// contentType 优先使用扩展名；扩展名未知时按文件头嗅探，空文件回落到 octet-stream。
func contentType(name string, head []byte) string {
	if ct := extensionType(name); ct != "" {
		return ct
	}
	if len(head) == 0 {
		return defaultContentType
	}
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}
	return mimetype.Detect(head).String()
}

// attachment 生成强制下载的 Content-Disposition；非 ASCII 文件名额外附带 RFC 5987 的 filename*。
func attachment(name string) string {
	if name == "" {
		name = "download"
	}
	fallback := asciiFallback(name)
	value := fmt.Sprintf(`attachment; filename="%s"`, quoteEscaper.Replace(fallback))
	if fallback != name {
		value += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return value
}

func asciiFallback(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, name)
}
