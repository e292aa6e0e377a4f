package systemd

import (
	"errors"
	"net"
	"os"

	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"go.uber.org/zap"
)

var ErrNoNotifySocket = errors.New("systemd-notify socket was not available")

// Ready tells systemd that the service finished starting up
func Ready() error {
	return Notify(NotifyReady)
}

// Stopping tells systemd that teardown has begun
func Stopping() error {
	return Notify(NotifyStopping)
}

// Status publishes a free-form status line shown by systemctl status
func Status(status string) error {
	return Notify(NotifyStatusPrefix + status)
}

// Notify sends the provided msg to the systemd socket
func Notify(msg string) error {
	name := os.Getenv(NotifySocketEnvVar)
	if name == "" {
		return ErrNoNotifySocket
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Net: "unixgram", Name: name})
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	if err != nil {
		log.Debug("systemd notification failed", zap.String("msg", msg), zap.Error(err))
	}
	return err
}
