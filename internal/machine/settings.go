package machine

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/subosito/gotenv"
)

const (
	KeyHost      = "DOCKER_HOST"
	KeyPort      = "DOCKER_PORT"
	KeyCertPath  = "DOCKER_CERT_PATH"
	KeyTLSVerify = "DOCKER_TLS_VERIFY"
)

// Settings are the key/value pairs discovered from the control tool.
type Settings map[string]string

// ParseSettings reads shell-style assignment lines. Comments and blank lines
// are ignored. A value of the form scheme://host:port is split into a host
// setting (scheme stripped) and a port setting.
func ParseSettings(out []byte) (Settings, error) {
	env, err := gotenv.StrictParse(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	settings := make(Settings, len(env))
	for key, value := range env {
		host, port, ok := splitHostPort(value)
		if !ok {
			settings[key] = value
			continue
		}
		settings[key] = host
		settings[portKey(key)] = port
	}
	return settings, nil
}

func splitHostPort(value string) (string, string, bool) {
	if !strings.Contains(value, "://") {
		return "", "", false
	}
	u, err := url.Parse(value)
	if err != nil || u.Hostname() == "" || u.Port() == "" {
		return "", "", false
	}
	return u.Hostname(), u.Port(), true
}

func portKey(key string) string {
	if base, ok := strings.CutSuffix(key, "_HOST"); ok {
		return base + "_PORT"
	}
	return key + "_PORT"
}
