package delivery

import (
	"errors"
	"net/http"

	"github.com/any-hub/file-hub/internal/pathutil"
)

// ErrIO 表示已解析且存在的路径在 open/read 阶段失败。文件服务器不区分瞬时与永久错误，
// 不做重试。
var ErrIO = errors.New("file io failure")

// StatusCode 将交付错误映射为 HTTP 状态码。
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, pathutil.ErrInvalidEncoding):
		return http.StatusBadRequest
	case errors.Is(err, pathutil.ErrTraversal):
		return http.StatusForbidden
	case errors.Is(err, pathutil.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode 返回写入响应体的错误码，与状态码一一对应。
func ErrorCode(err error) string {
	switch StatusCode(err) {
	case http.StatusBadRequest:
		return "invalid_path_encoding"
	case http.StatusForbidden:
		return "traversal_blocked"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "io_failure"
	}
}
