package systemd

const (
	NotifySocketEnvVar = "NOTIFY_SOCKET"
	NotifyReady        = "READY=1"
	NotifyStopping     = "STOPPING=1"
	NotifyStatusPrefix = "STATUS="
)
