package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/molginc/actionlib/model"
	"github.com/molginc/actionlib/progress"
	"github.com/molginc/actionlib/service/coordinator"
	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"
)

// Name is the action this handler registers under.
const Name = "shell"

// Service executes command-sequence goals on local or remote hosts. Sessions
// are cached per host URL and reused across goals.
type Service struct {
	sessions map[string]*sessionInfo
	mux      sync.Mutex
}

type sessionInfo struct {
	service *gosh.Service
}

// New creates a new shell service
func New() *Service {
	return &Service{sessions: make(map[string]*sessionInfo)}
}

// Name returns the handler name
func (s *Service) Name() string {
	return Name
}

// Execute runs the goal's commands one at a time, publishing per-command
// progress feedback. A preempt request observed between commands terminates
// the goal as preempted; with AbortOnError in effect (the default) the first
// non-zero exit aborts it.
func (s *Service) Execute(ctx context.Context, input *Input, goal coordinator.GoalHandle) error {
	input.Init()
	coord := coordinator.FromContext(ctx)

	session, err := s.getSession(ctx, input.Host, input.Env)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	if input.Directory != "" {
		if _, _, err := session.service.Run(ctx, fmt.Sprintf("cd %s", input.Directory)); err != nil {
			return fmt.Errorf("failed to change directory: %w", err)
		}
	}

	abortOnError := true
	if input.AbortOnError != nil {
		abortOnError = *input.AbortOnError
	}
	timeout := time.Duration(input.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = time.Minute
	}

	tracker, ok := progress.FromContext(ctx)
	if !ok {
		_, tracker = progress.WithNewTracker(ctx, goal.ID(), goal.Goal().Action, nil)
	}
	tracker.Update(progress.Delta{Total: len(input.Commands), Pending: len(input.Commands)})

	output := &Output{}
	var combinedStdout, combinedStderr strings.Builder
	for i, cmd := range input.Commands {
		if preemptRequested(coord, goal) {
			output.combine(combinedStdout.String(), combinedStderr.String())
			// Terminate only this goal; a superseding goal waiting in the
			// next slot stays eligible for promotion.
			goal.SetCanceled(output, fmt.Sprintf("preempted after %d of %d commands", i, len(input.Commands)))
			return nil
		}

		tracker.SetStage(cmd)
		tracker.Update(progress.Delta{Pending: -1, Running: 1})

		command := &Command{Input: cmd}
		command.Output, command.Stderr, command.Status = s.executeCommand(ctx, session, cmd, timeout)
		output.Commands = append(output.Commands, command)
		output.Status = command.Status

		if command.Output != "" {
			combinedStdout.WriteString(command.Output)
			combinedStdout.WriteString("\n")
		}
		if command.Stderr != "" {
			combinedStderr.WriteString(command.Stderr)
			combinedStderr.WriteString("\n")
		}

		if command.Status == 0 {
			tracker.Update(progress.Delta{Running: -1, Completed: 1})
		} else {
			tracker.Update(progress.Delta{Running: -1, Failed: 1})
		}
		goal.PublishFeedback(tracker.Snapshot())

		if abortOnError && command.Status != 0 {
			output.combine(combinedStdout.String(), combinedStderr.String())
			abortGoal(coord, goal, output, fmt.Sprintf("command %q exited with status %d", cmd, command.Status))
			return nil
		}
	}

	output.combine(combinedStdout.String(), combinedStderr.String())
	goal.SetSucceeded(output, "all commands succeeded")
	return nil
}

// executeCommand runs a single command and splits its output by exit status.
func (s *Service) executeCommand(ctx context.Context, session *sessionInfo, command string, timeout time.Duration) (string, string, int) {
	started := time.Now()
	stdout, status, err := session.service.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	if elapsed := time.Since(started); elapsed > timeout && err == nil {
		err = fmt.Errorf("command %q timed out after %s", command, elapsed)
	}
	if err != nil && status == 0 {
		status = 1
	}
	if status == 0 {
		return stdout, "", 0
	}
	if stdout == "" && err != nil {
		stdout = err.Error()
	}
	return "", stdout, status
}

// getSession retrieves an existing session or creates a new one.
func (s *Service) getSession(ctx context.Context, host *Host, env map[string]string) (*sessionInfo, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if session, ok := s.sessions[host.URL]; ok {
		return session, nil
	}

	var envOptions []runner.Option
	if len(env) > 0 {
		envOptions = append(envOptions, runner.WithEnvironment(env))
	}

	var service *gosh.Service
	var err error
	if url.Host(host.URL) == "localhost" {
		service, err = gosh.New(ctx, local.New(envOptions...))
	} else {
		config, cfgErr := s.getSSHConfig(ctx, host)
		if cfgErr != nil {
			return nil, fmt.Errorf("failed to resolve ssh credentials: %w", cfgErr)
		}
		address := url.Host(host.URL)
		if !strings.Contains(address, ":") {
			address += ":22"
		}
		service, err = gosh.New(ctx, rssh.New(address, config, envOptions...))
	}
	if err != nil {
		return nil, err
	}
	session := &sessionInfo{service: service}
	s.sessions[host.URL] = session
	return session, nil
}

// getSSHConfig resolves the host credentials into an SSH client config.
func (s *Service) getSSHConfig(ctx context.Context, host *Host) (*ssh.ClientConfig, error) {
	credentials := host.Credentials
	if credentials == "" {
		credentials = "localhost"
	}
	secrets := secret.New()
	generic, err := secrets.GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

// Close releases all cached sessions.
func (s *Service) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	var errs []string
	for id, session := range s.sessions {
		if err := session.service.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close session %s: %v", id, err))
		}
	}
	s.sessions = make(map[string]*sessionInfo)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sessions: %s", strings.Join(errs, "; "))
	}
	return nil
}

func preemptRequested(coord *coordinator.Service, goal coordinator.GoalHandle) bool {
	if goal.Status() == model.StatusPreempting {
		return true
	}
	return coord != nil && coord.IsPreemptRequested()
}

// abortGoal prefers the coordinator-level terminal so goals waiting behind
// the failed one are flushed; outside an execution loop it falls back to the
// handle.
func abortGoal(coord *coordinator.Service, goal coordinator.GoalHandle, result interface{}, text string) {
	if coord != nil {
		coord.SetAborted(result, text)
		return
	}
	goal.SetAborted(result, text)
}
