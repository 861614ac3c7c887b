package input

import (
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

// Resolver fills in application names from process ids
type Resolver struct {
	mu    sync.Mutex
	names map[int32]string
	// lookup is replaceable in tests
	lookup func(pid int32) (string, error)
}

// NewResolver creates a resolver backed by the process table
func NewResolver() *Resolver {
	return &Resolver{
		names:  make(map[int32]string),
		lookup: processName,
	}
}

func processName(pid int32) (string, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return proc.Name()
}

// Name returns the application name for o, looking up the process when the
// event did not carry one. Results are cached per pid.
func (r *Resolver) Name(o *Owner) string {
	if o == nil {
		return ""
	}
	if name := strings.TrimSpace(o.Name); name != "" || o.ProcessID <= 0 {
		return name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.names[o.ProcessID]; ok {
		return name
	}
	name, err := r.lookup(o.ProcessID)
	if err != nil {
		return ""
	}
	r.names[o.ProcessID] = name
	return name
}

// RunningBrowsers returns the names of running processes matching any of the
// browser name fragments (case-insensitive), without duplicates.
func RunningBrowsers(browsers []string) ([]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return matchBrowsers(names, browsers), nil
}

func matchBrowsers(names, browsers []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, b := range browsers {
			if strings.Contains(lower, strings.ToLower(b)) && !seen[name] {
				seen[name] = true
				out = append(out, name)
				break
			}
		}
	}
	return out
}
