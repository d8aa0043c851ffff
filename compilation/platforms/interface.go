package platforms

import "github.com/MedGa-eth/foundry/compilation/types"

// PlatformConfig describes the interface all compilation platform configs must implement.
type PlatformConfig interface {
	Compile() ([]types.Compilation, string, error)
	Platform() string
	GetTarget() string
	SetTarget(string)

	// EnableStorageLayout requests that the platform additionally emit storage-layout information
	// for every compiled contract. Storage layouts are required by consumers which validate layout
	// compatibility against a previously recorded baseline.
	EnableStorageLayout()
}
