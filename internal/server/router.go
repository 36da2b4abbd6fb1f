package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestHandler describes the component responsible for answering file
// requests. It allows injecting fake handlers during tests.
type RequestHandler interface {
	Handle(fiber.Ctx) error
}

// RequestHandlerFunc adapts a function to the RequestHandler interface.
type RequestHandlerFunc func(fiber.Ctx) error

// Handle makes RequestHandlerFunc satisfy RequestHandler.
func (f RequestHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Handler    RequestHandler
	EnableCORS bool
}

const contextKeyRequestID = "_filehub_request_id"

// NewApp builds a Fiber application with request-id, access log and
// structured error handling. Diagnostics routes registered afterwards under
// /-/ are reached through c.Next().
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("request handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	app.Use(accessLogMiddleware(opts.Logger))
	if opts.EnableCORS {
		app.Use(cors.New())
	}

	// fiber v3 的 Get 不会顺带注册 HEAD
	app.Add([]string{fiber.MethodGet, fiber.MethodHead}, "/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return opts.Handler.Handle(c)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，并写回 X-Request-ID 响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// accessLogMiddleware 在请求结束后记录一条访问日志。流式响应的字节数取自 Content-Length。
func accessLogMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		fields := logrus.Fields{
			"action":     "access",
			"request_id": RequestID(c),
			"client_ip":  c.IP(),
			"method":     c.Method(),
			"path":       string(c.Request().URI().PathOriginal()),
			"query":      string(c.Request().URI().QueryString()),
			"status":     status,
			"bytes":      c.Response().Header.ContentLength(),
			"elapsed_ms": time.Since(started).Milliseconds(),
		}
		entry := logger.WithFields(fields)
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("access")
		case status >= fiber.StatusBadRequest:
			entry.Warn("access")
		default:
			entry.Info("access")
		}
		return err
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
