package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStorageVariableSlotIndex tests decimal slot string parsing.
func TestStorageVariableSlotIndex(t *testing.T) {
	variable := StorageVariable{Label: "x", Slot: "12"}
	slot, err := variable.SlotIndex()
	require.NoError(t, err)
	assert.EqualValues(t, 12, slot)

	variable.Slot = "not-a-number"
	_, err = variable.SlotIndex()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "x")
}

// TestStorageTypeDescriptorByteSize tests byte-count string parsing.
func TestStorageTypeDescriptorByteSize(t *testing.T) {
	descriptor := StorageTypeDescriptor{NumberOfBytes: "16"}
	size, err := descriptor.ByteSize()
	require.NoError(t, err)
	assert.EqualValues(t, 16, size)

	descriptor.NumberOfBytes = ""
	_, err = descriptor.ByteSize()
	assert.Error(t, err)
}

// TestStorageLayoutTypeOf tests type descriptor resolution through the layout's type table.
func TestStorageLayoutTypeOf(t *testing.T) {
	layout := StorageLayout{
		Storage: []StorageVariable{{Label: "a", Slot: "0", Type: "t_uint256"}},
		Types: map[string]StorageTypeDescriptor{
			"t_uint256": {Encoding: "inplace", Label: "uint256", NumberOfBytes: "32"},
		},
	}

	descriptor, ok := layout.TypeOf(&layout.Storage[0])
	require.True(t, ok)
	assert.Equal(t, "inplace", descriptor.Encoding)

	missing := StorageVariable{Label: "b", Slot: "1", Type: "t_unknown"}
	_, ok = layout.TypeOf(&missing)
	assert.False(t, ok)

	var empty StorageLayout
	_, ok = empty.TypeOf(&missing)
	assert.False(t, ok)
}

// TestParseStorageLayoutFromInterface tests parsing of both embedded-string and already-decoded layout
// representations produced by different compiler platforms.
func TestParseStorageLayoutFromInterface(t *testing.T) {
	raw := `{"storage":[{"label":"a","offset":0,"slot":"0","type":"t_uint256"}],"types":{"t_uint256":{"encoding":"inplace","label":"uint256","numberOfBytes":"32"}}}`

	// String form.
	layout, err := ParseStorageLayoutFromInterface(raw)
	require.NoError(t, err)
	require.Len(t, layout.Storage, 1)
	assert.Equal(t, "a", layout.Storage[0].Label)

	// Object form.
	layout, err = ParseStorageLayoutFromInterface(map[string]any{
		"storage": []any{map[string]any{"label": "a", "offset": 0, "slot": "0", "type": "t_uint256"}},
		"types":   map[string]any{"t_uint256": map[string]any{"encoding": "inplace", "label": "uint256", "numberOfBytes": "32"}},
	})
	require.NoError(t, err)
	require.Len(t, layout.Storage, 1)
	descriptor, ok := layout.TypeOf(&layout.Storage[0])
	require.True(t, ok)
	assert.Equal(t, "32", descriptor.NumberOfBytes)

	// Malformed string form.
	_, err = ParseStorageLayoutFromInterface("{broken")
	assert.Error(t, err)
}

// TestGetDeploymentMessageData tests that constructor arguments are appended to a copy of the init bytecode.
func TestGetDeploymentMessageData(t *testing.T) {
	contract := CompiledContract{InitBytecode: []byte{0x60, 0x80}}
	data := contract.GetDeploymentMessageData([]byte{0x01, 0x02})
	assert.Equal(t, []byte{0x60, 0x80, 0x01, 0x02}, data)

	// The original init bytecode is untouched.
	data[0] = 0xff
	assert.Equal(t, []byte{0x60, 0x80}, contract.InitBytecode)
}
