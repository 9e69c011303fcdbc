package core

// Logger is any service that can log messages.
// expected args: error, map[string]interface{}, user.User (the person to attach)
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
