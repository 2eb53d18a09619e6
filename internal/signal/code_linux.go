//go:build linux

package signal

import "syscall"

// Values from <asm-generic/siginfo.h>.
var signalCodes = map[syscall.Signal]map[int]string{
	syscall.SIGILL: {
		1: "ILL_ILLOPC",
		2: "ILL_ILLOPN",
		3: "ILL_ILLADR",
		4: "ILL_ILLTRP",
		5: "ILL_PRVOPC",
		6: "ILL_PRVREG",
		7: "ILL_COPROC",
		8: "ILL_BADSTK",
	},
	syscall.SIGFPE: {
		1: "FPE_INTDIV",
		2: "FPE_INTOVF",
		3: "FPE_FLTDIV",
		4: "FPE_FLTOVF",
		5: "FPE_FLTUND",
		6: "FPE_FLTRES",
		7: "FPE_FLTINV",
		8: "FPE_FLTSUB",
	},
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
	0:    "SI_USER",
	0x80: "SI_KERNEL",
	-1:   "SI_QUEUE",
	-2:   "SI_TIMER",
	-3:   "SI_MESGQ",
	-4:   "SI_ASYNCIO",
	-6:   "SI_TKILL",
}

// CodeUser is the si_code of a signal sent with kill(2).
const CodeUser = 0
