package model

import "os"

// CaptureProcessInfo snapshots the arguments, environment, working
// directory and pid of the current process. A working directory that
// cannot be read is left unset. Invalid UTF-8 is replaced with U+FFFD.
func CaptureProcessInfo() ProcessInfo {
	info := ProcessInfo{
		Args: append([]string(nil), os.Args...),
		Env:  os.Environ(),
		ID:   uint64(os.Getpid()),
	}
	if cwd, err := os.Getwd(); err == nil {
		info.Cwd = &cwd
	}
	return info.Sanitized()
}

// NewHello builds the session descriptor for the current process.
func NewHello() Hello {
	return Hello{ProcessInfo: CaptureProcessInfo()}
}
