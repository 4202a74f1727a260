package state

import (
	"errors"
	"fmt"
	"math"
)

// StateVersion identifies the on-disk schema layout. Increment it whenever
// fields are appended to a stored record. Version 2 appends the settlement
// split to orders and the schema version to the root.
const StateVersion uint32 = 2

// ErrStateVersionMismatch indicates the stored schema is newer than the one
// supported by the current binary.
var ErrStateVersionMismatch = errors.New("state: schema version mismatch")

// SetStateVersion records the provided schema version. Callers should invoke
// it after performing any required migrations.
func (m *Manager) SetStateVersion(version uint32) error {
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stored schema version and whether it was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// EnsureStateVersion accepts state written by this or any earlier schema,
// since records only ever gain optional trailing fields, and stamps the
// current version. State written by a newer binary is refused.
func (m *Manager) EnsureStateVersion() error {
	version, ok, err := m.StateVersion()
	if err != nil {
		return err
	}
	if ok && version > StateVersion {
		return fmt.Errorf("%w: on-disk=%d supported=%d", ErrStateVersionMismatch, version, StateVersion)
	}
	if ok && version == StateVersion {
		return nil
	}
	return m.SetStateVersion(StateVersion)
}
