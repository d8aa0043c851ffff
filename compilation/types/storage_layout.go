package types

import (
	"fmt"
	"strconv"
)

// StorageLayout describes the physical layout of a contract's state variables, as emitted by the
// compiler's storage-layout output. It maps each state variable to a storage slot, an in-slot byte
// offset, and a type descriptor describing how the value is encoded at that position.
type StorageLayout struct {
	// Storage describes the ordered list of state variables and their assigned storage positions.
	Storage []StorageVariable `json:"storage"`

	// Types maps type identifiers referenced by Storage entries to their encoding descriptors.
	Types map[string]StorageTypeDescriptor `json:"types"`
}

// StorageVariable describes a single state variable's position within contract storage.
type StorageVariable struct {
	// AstId references the declaration node in the compiler's AST, if provided.
	AstId int `json:"astId,omitempty"`

	// Contract describes the fully qualified name of the contract declaring the variable.
	Contract string `json:"contract,omitempty"`

	// Label describes the source-level name of the variable.
	Label string `json:"label"`

	// Offset describes the byte offset of the variable within its slot.
	Offset int `json:"offset"`

	// Slot describes the storage slot index the variable starts at, as a decimal string. The
	// compiler emits it as a string because slot indexes are 256-bit values.
	Slot string `json:"slot"`

	// Type references a key into the layout's Types map.
	Type string `json:"type"`
}

// StorageTypeDescriptor describes how a storage variable's type is physically encoded.
type StorageTypeDescriptor struct {
	// Encoding describes the encoding strategy, e.g. "inplace", "mapping", "dynamic_array", "bytes".
	Encoding string `json:"encoding"`

	// Label describes the source-level type name, e.g. "uint256".
	Label string `json:"label"`

	// NumberOfBytes describes the number of bytes the type occupies, as a decimal string.
	NumberOfBytes string `json:"numberOfBytes"`

	// Base references the element type for array encodings, if any.
	Base string `json:"base,omitempty"`

	// Key and Value reference the key/value types for mapping encodings, if any.
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

// SlotIndex parses the variable's slot string into an integer index. Returns an error if the slot
// cannot be parsed as an unsigned integer.
func (v *StorageVariable) SlotIndex() (uint64, error) {
	slot, err := strconv.ParseUint(v.Slot, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse storage slot '%s' for variable '%s': %v", v.Slot, v.Label, err)
	}
	return slot, nil
}

// ByteSize parses the descriptor's byte count. Returns an error if the count cannot be parsed.
func (t *StorageTypeDescriptor) ByteSize() (uint64, error) {
	size, err := strconv.ParseUint(t.NumberOfBytes, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse storage type byte size '%s': %v", t.NumberOfBytes, err)
	}
	return size, nil
}

// TypeOf resolves the type descriptor referenced by the provided variable. The second return value
// indicates whether the descriptor was found in the layout's type table.
func (l *StorageLayout) TypeOf(v *StorageVariable) (StorageTypeDescriptor, bool) {
	if l.Types == nil {
		return StorageTypeDescriptor{}, false
	}
	descriptor, ok := l.Types[v.Type]
	return descriptor, ok
}
