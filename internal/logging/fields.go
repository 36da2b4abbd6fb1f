package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求标识、客户端与交付路径字段，供文件交付日志复用。
// source 为空表示请求在选择交付路径之前就失败了。
func RequestFields(requestID, clientIP, path, source string) logrus.Fields {
	fields := logrus.Fields{
		"request_id": requestID,
		"client_ip":  clientIP,
		"path":       path,
	}
	if source != "" {
		fields["source"] = source
	}
	return fields
}
