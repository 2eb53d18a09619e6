//go:build unix && !linux

package signal

import "syscall"

// Values shared by the BSD-derived systems (<sys/signal.h>).
var signalCodes = map[syscall.Signal]map[int]string{
	syscall.SIGSEGV: {
		1: "SEGV_MAPERR",
		2: "SEGV_ACCERR",
	},
	syscall.SIGBUS: {
		1: "BUS_ADRALN",
		2: "BUS_ADRERR",
		3: "BUS_OBJERR",
	},
	syscall.SIGTRAP: {
		1: "TRAP_BRKPT",
		2: "TRAP_TRACE",
	},
}

var genericCodes = map[int]string{
	0x10001: "SI_USER",
	0x10002: "SI_QUEUE",
	0x10003: "SI_TIMER",
	0x10004: "SI_ASYNCIO",
	0x10005: "SI_MESGQ",
}

// CodeUser is the si_code of a signal sent with kill(2).
const CodeUser = 0x10001
