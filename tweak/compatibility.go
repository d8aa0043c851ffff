package tweak

import (
	"fmt"

	compilationTypes "github.com/MedGa-eth/foundry/compilation/types"
	"github.com/pkg/errors"
)

// storagePosition identifies the physical location of a storage variable.
type storagePosition struct {
	slot   uint64
	offset int
}

func (p storagePosition) String() string {
	return fmt.Sprintf("slot %d offset %d", p.slot, p.offset)
}

// StorageViolation describes one storage variable whose physical position or encoding diverges between the
// recorded layout and the current compile output.
type StorageViolation struct {
	// Label is the source-level name of the violating variable.
	Label string

	// Reason describes the violation, including the expected and actual slot/offset/type information.
	Reason string
}

func (v StorageViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Label, v.Reason)
}

/*
CheckStorageCompatibility verifies that every variable in the recorded layout keeps its exact physical position
and encoding in the current layout. Variables appended by the current layout at positions the recorded layout
never claimed are permitted; everything else (a missing variable, a relocated variable, a changed byte size or
encoding, or a new variable occupying a recorded variable's position) is a violation. The check is exhaustive:
all violations are accumulated into a single IncompatibleStorageError rather than stopping at the first, so a
user can fix their source in one pass. Success returns nil.

The comparison is purely physical. Two types with different names but the same slot, offset, byte size, and
encoding are compatible, because the generated bytecode will read storage written under the recorded layout and
only the physical encoding determines whether those reads resolve correctly.
*/
func CheckStorageCompatibility(recorded *compilationTypes.StorageLayout, current *compilationTypes.StorageLayout) error {
	// Index the current layout by physical position and by variable name.
	currentByPosition := make(map[storagePosition]*compilationTypes.StorageVariable)
	currentByLabel := make(map[string]*compilationTypes.StorageVariable)
	for i := range current.Storage {
		variable := &current.Storage[i]
		slot, err := variable.SlotIndex()
		if err != nil {
			return errors.WithStack(err)
		}
		position := storagePosition{slot: slot, offset: variable.Offset}
		if _, ok := currentByPosition[position]; !ok {
			currentByPosition[position] = variable
		}
		if _, ok := currentByLabel[variable.Label]; !ok {
			currentByLabel[variable.Label] = variable
		}
	}

	var violations []StorageViolation
	for i := range recorded.Storage {
		recordedVar := &recorded.Storage[i]
		slot, err := recordedVar.SlotIndex()
		if err != nil {
			return errors.WithStack(err)
		}
		position := storagePosition{slot: slot, offset: recordedVar.Offset}

		currentVar, ok := currentByPosition[position]
		if !ok {
			// The recorded position is vacant. If the variable still exists somewhere else, it moved;
			// otherwise it was removed.
			if movedVar, moved := currentByLabel[recordedVar.Label]; moved {
				movedSlot, err := movedVar.SlotIndex()
				if err != nil {
					return errors.WithStack(err)
				}
				violations = append(violations, StorageViolation{
					Label:  recordedVar.Label,
					Reason: fmt.Sprintf("moved from %s to %s", position, storagePosition{slot: movedSlot, offset: movedVar.Offset}),
				})
			} else {
				violations = append(violations, StorageViolation{
					Label:  recordedVar.Label,
					Reason: fmt.Sprintf("expected at %s but is missing from the current layout", position),
				})
			}
			continue
		}

		if currentVar.Label != recordedVar.Label {
			violations = append(violations, StorageViolation{
				Label:  recordedVar.Label,
				Reason: fmt.Sprintf("position %s is now occupied by '%s'", position, currentVar.Label),
			})
			continue
		}

		// The variable is where it should be. Its physical encoding must match as well.
		recordedType, ok := recorded.TypeOf(recordedVar)
		if !ok {
			return errors.Errorf("recorded storage layout references unknown type '%s' for variable '%s'", recordedVar.Type, recordedVar.Label)
		}
		currentType, ok := current.TypeOf(currentVar)
		if !ok {
			return errors.Errorf("current storage layout references unknown type '%s' for variable '%s'", currentVar.Type, currentVar.Label)
		}

		recordedSize, err := recordedType.ByteSize()
		if err != nil {
			return errors.WithStack(err)
		}
		currentSize, err := currentType.ByteSize()
		if err != nil {
			return errors.WithStack(err)
		}
		if recordedSize != currentSize {
			violations = append(violations, StorageViolation{
				Label:  recordedVar.Label,
				Reason: fmt.Sprintf("byte size at %s changed from %d (%s) to %d (%s)", position, recordedSize, recordedType.Label, currentSize, currentType.Label),
			})
		}
		if recordedType.Encoding != currentType.Encoding {
			violations = append(violations, StorageViolation{
				Label:  recordedVar.Label,
				Reason: fmt.Sprintf("encoding at %s changed from '%s' (%s) to '%s' (%s)", position, recordedType.Encoding, recordedType.Label, currentType.Encoding, currentType.Label),
			})
		}
	}

	if len(violations) > 0 {
		return &IncompatibleStorageError{Violations: violations}
	}
	return nil
}
