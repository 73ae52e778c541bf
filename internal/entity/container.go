package entity

// ContainerInstance is the engine's view of a container. It is never cached
// between deployments.
type ContainerInstance struct {
	ID    string
	Image string
	Name  string
	State string
}

// Credentials authenticate an image pull. An empty ServerAddress means the
// engine's default public registry.
type Credentials struct {
	Username      string
	Password      string
	ServerAddress string
}

// String never includes the password.
func (c Credentials) String() string {
	if c.Username == "" {
		return "anonymous"
	}
	if c.ServerAddress == "" {
		return c.Username
	}
	return c.Username + "@" + c.ServerAddress
}
