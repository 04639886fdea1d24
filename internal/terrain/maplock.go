package terrain

import "errors"

// Lock protocol errors shared by the editable maps.
var (
	ErrMapLocked    = errors.New("map is already locked")
	ErrMapNotLocked = errors.New("map is not locked")
	ErrMapReadOnly  = errors.New("map is locked read-only")
)

// mapLock tracks the edit lock of a HeightField, HoleMask or MaterialMap.
// It is a protocol, not a mutex. Setters write the live data, so a reader
// running during an edit sees the new samples against the derived state
// (extrema, degenerate flags, dominant map) of the last commit. Edits and
// queries on one block must not overlap.
type mapLock struct {
	locked   bool
	readOnly bool
}

func (l *mapLock) lock(readOnly bool) error {
	if l.locked {
		return ErrMapLocked
	}
	l.locked = true
	l.readOnly = readOnly
	return nil
}

// unlock releases the lock and reports whether it was a write lock.
func (l *mapLock) unlock() (bool, error) {
	if !l.locked {
		return false, ErrMapNotLocked
	}
	wrote := !l.readOnly
	l.locked = false
	l.readOnly = false
	return wrote, nil
}

func (l *mapLock) writable() error {
	if !l.locked {
		return ErrMapNotLocked
	}
	if l.readOnly {
		return ErrMapReadOnly
	}
	return nil
}
