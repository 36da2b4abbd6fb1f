package listing

import (
	"html/template"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

var pageTemplate = template.Must(template.New("listing").Funcs(template.FuncMap{
	"size": formatSize,
}).Parse(`<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Index of {{.Path}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 2rem auto; max-width: 960px; color: #333; }
h1 { font-size: 1.5rem; font-weight: 600; }
.summary { color: #888; margin-bottom: 1rem; }
table { width: 100%; border-collapse: collapse; }
td { padding: .45rem .75rem; border-bottom: 1px solid #eee; }
td.size { text-align: right; color: #666; white-space: nowrap; }
a { text-decoration: none; color: #4457c5; }
a.dir { font-weight: 600; }
</style>
</head>
<body>
<h1>Index of {{.Path}}</h1>
<div class="summary">{{.Dirs}} 个目录，{{.Files}} 个文件</div>
<table>
{{- range .Entries}}
<tr>
<td>{{if .IsDir}}<a class="dir" href="{{.URL}}">{{.Name}}/</a>{{else}}<a href="{{.URL}}?download">{{.Name}}</a>{{end}}</td>
<td class="size">{{size .Size}}</td>
</tr>
{{- end}}
</table>
</body>
</html>
`))

type htmlView struct {
	*Page
	Dirs  int
	Files int
}

// RenderHTML 输出目录列表页面；模板负责转义文件名与 URL。
func RenderHTML(w io.Writer, page *Page) error {
	dirs := lo.CountBy(page.Entries, func(e Entry) bool {
		return e.IsDir && e.Name != ".."
	})
	files := lo.CountBy(page.Entries, func(e Entry) bool {
		return !e.IsDir
	})
	return pageTemplate.Execute(w, htmlView{Page: page, Dirs: dirs, Files: files})
}

func formatSize(size *int64) string {
	if size == nil {
		return "-"
	}
	return humanize.IBytes(uint64(*size))
}
