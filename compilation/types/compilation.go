package types

// Compilation represents the artifacts of a smart contract compilation.
type Compilation struct {
	// SourcePathToArtifact maps source file paths to their compiled artifacts, housing information
	// regarding the contracts compiled from each source file.
	SourcePathToArtifact map[string]SourceArtifact
}

// SourceArtifact represents the compilation output associated with a single source file.
type SourceArtifact struct {
	// Contracts maps contract names declared in the source file to their compiled form.
	Contracts map[string]CompiledContract
}

// NewCompilation returns a new, empty Compilation object.
func NewCompilation() *Compilation {
	return &Compilation{
		SourcePathToArtifact: make(map[string]SourceArtifact),
	}
}
