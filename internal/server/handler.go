package server

import (
	"bytes"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/file-hub/internal/delivery"
	"github.com/any-hub/file-hub/internal/listing"
)

// DeliveryHandler 把 HTTP 请求翻译为 delivery.Request，并把引擎输出写回 fiber。
type DeliveryHandler struct {
	engine *delivery.Engine
	logger *logrus.Logger
}

// NewDeliveryHandler 构建文件请求处理器。
func NewDeliveryHandler(engine *delivery.Engine, logger *logrus.Logger) (*DeliveryHandler, error) {
	if engine == nil {
		return nil, errors.New("delivery engine is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &DeliveryHandler{engine: engine, logger: logger}, nil
}

// Handle 实现 RequestHandler。
func (h *DeliveryHandler) Handle(c fiber.Ctx) error {
	uri := c.Request().URI()
	req := delivery.Request{
		Path:      string(uri.PathOriginal()),
		Download:  uri.QueryArgs().Has("download"),
		RequestID: RequestID(c),
		ClientIP:  c.IP(),
	}

	resp, err := h.engine.Serve(c.Context(), req)
	if err != nil {
		return h.writeError(c, err)
	}

	if resp.IsDirectory() {
		return h.writeListing(c, resp.Listing)
	}
	return h.writeFile(c, resp)
}

func (h *DeliveryHandler) writeFile(c fiber.Ctx, resp *delivery.Response) error {
	c.Set(fiber.HeaderContentType, resp.Header.ContentType)
	c.Set(fiber.HeaderContentDisposition, resp.Header.ContentDisposition)
	c.Set("X-File-Hub-Source", string(resp.Source))
	c.Status(fiber.StatusOK)

	if resp.Stream == nil {
		return c.Send(resp.Body)
	}
	if c.Method() == fiber.MethodHead {
		_ = resp.Stream.Close()
		c.Response().Header.SetContentLength(int(resp.Header.ContentLength))
		return nil
	}
	// fasthttp 在传输结束或连接断开后关闭实现了 io.Closer 的 body stream
	return c.SendStream(resp.Stream, int(resp.Header.ContentLength))
}

func (h *DeliveryHandler) writeListing(c fiber.Ctx, page *listing.Page) error {
	if wantsJSON(c) {
		return c.JSON(page)
	}
	var buf bytes.Buffer
	if err := listing.RenderHTML(&buf, page); err != nil {
		h.logger.WithFields(logrus.Fields{
			"action":     "render_listing",
			"request_id": RequestID(c),
			"path":       page.Path,
		}).WithError(err).Error("render_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "render_failed"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

func (h *DeliveryHandler) writeError(c fiber.Ctx, err error) error {
	return c.Status(delivery.StatusCode(err)).JSON(fiber.Map{"error": delivery.ErrorCode(err)})
}

func wantsJSON(c fiber.Ctx) bool {
	if c.Query("format") == "json" {
		return true
	}
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}
