package constants

// Stage marker. A process started with this variable set runs a detach stage
// instead of the command line interface.
const (
	StageEnv   = "ORPHAN_SPAWNER_STAGE"
	StageValue = "1"
)

// Stage names
const (
	StageIntermediate = "intermediate"
	StageGrandchild   = "grandchild"
)

// ResultFd is the descriptor number the result channel's write end occupies
// in every stage process and in a replaced image.
const ResultFd = 3

// DefaultFdFlag is the flag used to pass the descriptor number to a replaced image
const DefaultFdFlag = "--write-fd"

// Defaults for the payload variable and spoofed name
const (
	DefaultEnvKey   = "CLASSPATH"
	DefaultNiceName = "zygote"
)

// Exit codes used by stage processes
const (
	ExitOK = 0
	// ExitAborted mirrors a process killed by SIGABRT (128+6)
	ExitAborted = 134
	// ExitFailure is returned by any failed command, including a checker
	// that could not produce a result
	ExitFailure = 1
)

// Log level constants
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Env prefix for configuration overrides
const EnvPrefix = "ORPHAN_SPAWNER"
