// Package envstore provides the persistent user environment that installed
// toolchains are published through.
package envstore

import (
	"sync"
)

// Memory is an in-process store. It backs dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	vars    map[string]string
	notices int
	getErr  map[string]error
	setErr  map[string]error
}

func NewMemory(initial map[string]string) *Memory {
	m := &Memory{
		vars:   make(map[string]string, len(initial)),
		getErr: map[string]error{},
		setErr: map[string]error{},
	}
	for k, v := range initial {
		m.vars[k] = v
	}
	return m
}

func (m *Memory) Get(name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getErr[name]; err != nil {
		return "", false, err
	}
	v, ok := m.vars[name]
	return v, ok, nil
}

func (m *Memory) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setErr[name]; err != nil {
		return err
	}
	m.vars[name] = value
	return nil
}

func (m *Memory) Notify() error {
	m.mu.Lock()
	m.notices++
	m.mu.Unlock()
	return nil
}

// Notifications returns how often Notify was called.
func (m *Memory) Notifications() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notices
}

// FailGet makes reads of name return err.
func (m *Memory) FailGet(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr[name] = err
}

// FailSet makes writes of name return err.
func (m *Memory) FailSet(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr[name] = err
}

