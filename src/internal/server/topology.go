// FILE: muxd/src/internal/server/topology.go
package server

import (
	"os"
	"sort"
	"sync"
)

// WorkerRole tells task workers apart from event loop workers
type WorkerRole int

const (
	RoleUnknown WorkerRole = iota
	RoleTaskWorker
	RoleRegularWorker
)

func (r WorkerRole) String() string {
	switch r {
	case RoleTaskWorker:
		return "task_worker"
	case RoleRegularWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// Topology is observational bookkeeping of the process tree.
// It is written from engine callbacks only and never drives scheduling.
type Topology struct {
	mu sync.RWMutex

	booted     bool
	masterPID  int
	managerPID int
	workerNum  int

	// Worker of the most recently observed event
	current int

	workers map[int]int
	tasks   map[int]map[int]struct{}

	pid func() int
}

func newTopology() *Topology {
	return &Topology{
		current: -1,
		workers: make(map[int]int),
		tasks:   make(map[int]map[int]struct{}),
		pid:     os.Getpid,
	}
}

func (t *Topology) boot(masterPID, managerPID, workerNum int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.booted = true
	t.masterPID = masterPID
	t.managerPID = managerPID
	t.workerNum = workerNum
}

func (t *Topology) setCurrent(workerID int) {
	if workerID < 0 {
		return
	}
	t.mu.Lock()
	t.current = workerID
	t.mu.Unlock()
}

// AddWorkMap records the pid of workerID; a negative id means the current worker
func (t *Topology) AddWorkMap(workerID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if workerID < 0 {
		workerID = t.current
	}
	if workerID < 0 {
		return
	}
	t.current = workerID
	t.workers[workerID] = t.pid()
}

// AddTaskMap records taskID as outstanding on workerID
func (t *Topology) AddTaskMap(workerID, taskID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.tasks[workerID]
	if !ok {
		set = make(map[int]struct{})
		t.tasks[workerID] = set
	}
	set[taskID] = struct{}{}
}

// RemoveTaskMap drops taskID from workerID
func (t *Topology) RemoveTaskMap(workerID, taskID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.tasks[workerID]
	if !ok {
		return
	}
	delete(set, taskID)
	if len(set) == 0 {
		delete(t.tasks, workerID)
	}
}

func (t *Topology) MasterPID() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.masterPID
}

func (t *Topology) ManagerPID() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.managerPID
}

// CurrentWorkerID is -1 until a worker has been observed
func (t *Topology) CurrentWorkerID() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

func (t *Topology) CurrentWorkerPID() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.workers[t.current]
}

// WorkIDMap returns a copy of worker id to pid
func (t *Topology) WorkIDMap() map[int]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[int]int, len(t.workers))
	for id, pid := range t.workers {
		out[id] = pid
	}
	return out
}

// TaskIDMap returns a copy of outstanding task ids per worker, sorted
func (t *Topology) TaskIDMap() map[int][]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[int][]int, len(t.tasks))
	for id, set := range t.tasks {
		ids := make([]int, 0, len(set))
		for task := range set {
			ids = append(ids, task)
		}
		sort.Ints(ids)
		out[id] = ids
	}
	return out
}

// WorkerRole classifies workerID; ids at or past worker_num are task workers.
// Unknown before boot and for negative ids.
func (t *Topology) WorkerRole(workerID int) WorkerRole {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.booted || workerID < 0 {
		return RoleUnknown
	}
	if workerID >= t.workerNum {
		return RoleTaskWorker
	}
	return RoleRegularWorker
}

// CurrentWorkerRole classifies the current worker
func (t *Topology) CurrentWorkerRole() WorkerRole {
	return t.WorkerRole(t.CurrentWorkerID())
}
