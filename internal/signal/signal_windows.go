//go:build windows
// +build windows

package signal

import (
	"syscall"
)

var signalMap = map[syscall.Signal]signalInfo{
	syscall.SIGABRT: {"SIGABRT", true, syscall.SIGABRT},
	syscall.SIGFPE:  {"SIGFPE", true, syscall.SIGFPE},
	syscall.SIGILL:  {"SIGILL", true, syscall.SIGILL},
	syscall.SIGKILL: {"SIGKILL", true, syscall.SIGKILL},
	syscall.SIGHUP:  {"SIGHUP", true, syscall.SIGHUP},
	syscall.SIGINT:  {"SIGINT", true, syscall.SIGINT},
	syscall.SIGSEGV: {"SIGSEGV", true, syscall.SIGSEGV},
	syscall.SIGTERM: {"SIGTERM", true, syscall.SIGTERM},
}

// reservedSignals are never used to request a stop.
var reservedSignals = []syscall.Signal{syscall.SIGKILL}

// Only the C runtime's synchronous signals exist on Windows.
var fatalSignals = [...]syscall.Signal{
	syscall.SIGABRT,
	syscall.SIGFPE,
	syscall.SIGILL,
	syscall.SIGSEGV,
}

var signalCodes = map[syscall.Signal]map[int]string{}

var genericCodes = map[int]string{}

// CodeUser is the si_code of a signal sent with kill(2).
const CodeUser = 0
