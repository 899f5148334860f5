package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// MountFields 描述一个挂载点，供请求、构建、监听日志复用。
func MountFields(mount, route, kind string) logrus.Fields {
	return logrus.Fields{
		"mount": mount,
		"route": route,
		"kind":  kind,
	}
}

// RequestFields 在 MountFields 基础上补充单次请求的路径、结果来源与请求 ID。
func RequestFields(mount, route, kind, path, outcome, requestID string) logrus.Fields {
	fields := MountFields(mount, route, kind)
	fields["path"] = path
	fields["cache_result"] = outcome
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
