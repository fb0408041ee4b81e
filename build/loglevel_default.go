package build

// LogLevel specifies the level of stdout loggers created by NewSubLogger.
var LogLevel = "info"
