package adapters

import (
	"context"
	"strings"
	"sync"
)

type runnerReply struct {
	stdout string
	stderr string
	err    error
}

// scriptedRunner answers commands by their joined argv.
type scriptedRunner struct {
	mu      sync.Mutex
	replies map[string]runnerReply
	calls   []string
}

func newScriptedRunner(replies map[string]runnerReply) *scriptedRunner {
	return &scriptedRunner{replies: replies}
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	command := strings.Join(append([]string{name}, args...), " ")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, command)
	reply := r.replies[command]
	return reply.stdout, reply.stderr, reply.err
}

func (r *scriptedRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
