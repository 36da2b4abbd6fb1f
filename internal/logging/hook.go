package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/file-hub/internal/version"
)

// ServiceName 写入每条日志的 service 字段，便于与同机其他进程的日志区分。
const ServiceName = "file-hub"

// serviceHook 为每条日志补齐进程级字段，已存在的同名字段不覆盖。
type serviceHook struct {
	fields logrus.Fields
}

func newServiceHook() *serviceHook {
	return &serviceHook{fields: logrus.Fields{
		"service": ServiceName,
		"version": version.Version,
	}}
}

func (h *serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}
