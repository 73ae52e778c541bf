package runtime

import (
	"os"

	"github.com/docker/docker/api/types/registry"
	"github.com/yz4230/deployhook/internal/entity"
)

type CredentialsProvider interface {
	Credentials() entity.Credentials
}

// EnvCredentials reads the repository credential pair from the process
// environment every time it is asked, so rotated credentials apply to the
// next pull without a restart.
type EnvCredentials struct {
	UsernameEnv   string
	PasswordEnv   string
	ServerAddress string
}

func (e *EnvCredentials) Credentials() entity.Credentials {
	return entity.Credentials{
		Username:      os.Getenv(e.UsernameEnv),
		Password:      os.Getenv(e.PasswordEnv),
		ServerAddress: e.ServerAddress,
	}
}

func NewEnvCredentials(usernameEnv, passwordEnv, serverAddress string) CredentialsProvider {
	return &EnvCredentials{UsernameEnv: usernameEnv, PasswordEnv: passwordEnv, ServerAddress: serverAddress}
}

// encodeRegistryAuth returns the X-Registry-Auth value, or "" for anonymous pulls.
func encodeRegistryAuth(auth entity.Credentials) (string, error) {
	if auth.Username == "" && auth.Password == "" {
		return "", nil
	}
	return registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.ServerAddress,
	})
}
