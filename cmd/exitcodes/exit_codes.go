package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeHandledError indicates an error occurred which was already reported through logging, so the
	// top-level handler should not print it again.
	ExitCodeHandledError = 6

	// ExitCodeIncompatibleStorage indicates the storage compatibility check failed. Kept distinct so scripted
	// callers can tell a layout break apart from an operational error.
	ExitCodeIncompatibleStorage = 7
)
