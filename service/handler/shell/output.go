package shell

import "strings"

// Command is the result of one executed command.
type Command struct {
	Input  string `json:"input,omitempty" yaml:"input,omitempty"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	Stderr string `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Status int    `json:"status,omitempty" yaml:"status,omitempty"`
}

// Output aggregates the results of a command sequence. It travels with the
// goal result on every terminal path, so aborted and preempted goals still
// carry the output collected up to that point.
type Output struct {
	Commands []*Command `json:"commands,omitempty" yaml:"commands,omitempty"`
	Stdout   string     `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr   string     `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Status   int        `json:"status,omitempty" yaml:"status,omitempty"`
}

func (o *Output) combine(stdout, stderr string) {
	o.Stdout = strings.TrimSpace(stdout)
	o.Stderr = strings.TrimSpace(stderr)
}
