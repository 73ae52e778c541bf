package machine

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"

	"github.com/docker/go-connections/tlsconfig"
	"github.com/samber/lo"
)

var (
	ErrNoHost       = errors.New("discovery output has no " + KeyHost)
	ErrMissingCerts = errors.New("missing certificate files")
)

// Endpoint is the resolved connection to the container engine.
type Endpoint struct {
	Settings Settings
	Host     string
	Port     string
	TLS      *tls.Config
}

// NewEndpoint builds the endpoint from discovered settings, loading TLS
// material from the certificate directory when one is given.
func NewEndpoint(settings Settings) (*Endpoint, error) {
	host := settings[KeyHost]
	if host == "" {
		return nil, ErrNoHost
	}
	ep := &Endpoint{Settings: settings, Host: host, Port: settings[KeyPort]}

	if certPath := settings[KeyCertPath]; certPath != "" {
		verify := lo.Contains([]string{"1", "true"}, settings[KeyTLSVerify])
		cfg, err := loadTLS(certPath, verify)
		if err != nil {
			return nil, err
		}
		ep.TLS = cfg
	}
	return ep, nil
}

// Address returns the engine address in the form the Docker client expects.
func (e *Endpoint) Address() string {
	if e.Port == "" {
		return e.Host
	}
	return "tcp://" + net.JoinHostPort(e.Host, e.Port)
}

// Export publishes the settings into the process environment.
func (e *Endpoint) Export() error {
	for _, key := range e.Keys() {
		if err := os.Setenv(key, e.Settings[key]); err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
	}
	return nil
}

// Keys returns the setting names in stable order.
func (e *Endpoint) Keys() []string {
	keys := lo.Keys(e.Settings)
	sort.Strings(keys)
	return keys
}

func loadTLS(certPath string, verify bool) (*tls.Config, error) {
	opts := tlsconfig.Options{
		CAFile:             filepath.Join(certPath, "ca.pem"),
		CertFile:           filepath.Join(certPath, "cert.pem"),
		KeyFile:            filepath.Join(certPath, "key.pem"),
		InsecureSkipVerify: !verify,
	}
	missing := lo.Filter([]string{opts.CAFile, opts.CertFile, opts.KeyFile}, func(path string, _ int) bool {
		_, err := os.Stat(path)
		return err != nil
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingCerts, missing)
	}
	cfg, err := tlsconfig.Client(opts)
	if err != nil {
		return nil, fmt.Errorf("load tls material: %w", err)
	}
	return cfg, nil
}
