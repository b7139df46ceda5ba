package log

var defaultLogger Logger

func init() {
	// 创建默认的SLog实例，向终端输出text格式日志
	slog, err := NewSLogWithOptions(&SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

func Default() Logger {
	return defaultLogger
}

// SetDefault 替换默认日志器，nil 会被忽略
func SetDefault(logger Logger) {
	if logger == nil {
		return
	}
	defaultLogger = logger
}
