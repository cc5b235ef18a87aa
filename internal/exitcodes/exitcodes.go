package exitcodes

// Exit codes for the myutils binary
// Scripts wrapping `myutils clean` and `myutils valid` rely on these values
const (
	Success         = 0 // Successful execution
	ValidationFalse = 1 // A `valid` check returned false
	InvalidConfig   = 2 // Configuration file or arguments invalid
	SafetyViolation = 3 // Safety guard refused the sweep root
	RuntimeError    = 4 // Runtime error during execution
)
