package errcode

// Error code convention:
// - 0: no error
// - 4xxx: recoverable business conditions (flow may continue)
// - 5xxx: system errors (flow must stop)
const (
	OK              = 0
	ResourceMissing = 4004
	SystemError     = 5000
)
