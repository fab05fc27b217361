package coordinator

import (
	"context"
	"log/slog"
)

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a message meant for the user rather than the logs.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger. It is the notifier of headless
// runs.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(notice Notice) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch notice.Level {
	case NoticeWarning:
		level = slog.LevelWarn
	case NoticeError:
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "📣 "+notice.Message, "notice", notice.Level.String())
}

// CredentialSource yields the credentials sent with a run. An empty map
// means none are configured.
type CredentialSource interface {
	Credentials() map[string]string
}

// CredentialsFunc adapts a function to the CredentialSource interface.
type CredentialsFunc func() map[string]string

// Credentials implements CredentialSource.
func (f CredentialsFunc) Credentials() map[string]string { return f() }
