package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求方法/路径/路由 action 与写入结果字段，供页面缓存与代理日志复用。
// route_action 与日志自身的 action 字段区分开。
func RequestFields(method, path, routeAction string, stored bool) logrus.Fields {
	return logrus.Fields{
		"method":       method,
		"path":         path,
		"route_action": routeAction,
		"cache_stored": stored,
	}
}
