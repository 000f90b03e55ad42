package shell

// Host identifies where a command sequence runs. Localhost URLs execute
// locally; anything else opens an SSH session with credentials resolved
// through scy.
type Host struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// Input is the shell goal payload: an ordered command sequence with optional
// host, working directory and environment.
type Input struct {
	Host         *Host             `json:"host,omitempty" yaml:"host,omitempty"`
	Directory    string            `json:"directory,omitempty" yaml:"directory,omitempty"`
	Env          map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Commands     []string          `json:"commands,omitempty" yaml:"commands,omitempty"`
	TimeoutMs    int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	AbortOnError *bool             `json:"abortOnError,omitempty" yaml:"abortOnError,omitempty"`
}

// Init applies defaults: local execution when no host is set.
func (i *Input) Init() {
	if i.Host == nil {
		i.Host = &Host{}
	}
	if i.Host.URL == "" {
		i.Host.URL = "bash://localhost/"
	}
}
