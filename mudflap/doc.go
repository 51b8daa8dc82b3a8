// Package mudflap provides a pointer-validity checking runtime.
//
// The runtime keeps a database of the memory objects a program has
// registered (heap blocks, stack variables, statics) and validates every
// instrumented access against it. Accesses outside any live object are
// reported as violations, as are frees of unknown objects and
// registrations over live ones.
//
// # Quick Start
//
//	package main
//
//	import (
//		"unsafe"
//
//		"github.com/kolkov/mudflap/mudflap"
//	)
//
//	var table [16]byte
//
//	func main() {
//		mudflap.Init()
//		defer mudflap.Fini()
//
//		mudflap.Register(uintptr(unsafe.Pointer(&table)), 16, mudflap.Static, "table")
//
//		// Instrumented access (normally inserted by a code generator)
//		mudflap.Check(uintptr(unsafe.Pointer(&table[3])), 1, "main.go:15")
//		table[3] = 1
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Initialization and finalization: [Init], [Configure], [Fini]
//   - Object lifetime tracking: [Register], [Unregister], [DeferFree]
//   - Access checking: [Check]
//   - Reporting: [Report], [GetStats]
//   - Version information: [GetInfo], [Version], [Compatible]
//
// # Options
//
// The runtime is configured by the MUDFLAP_OPTIONS environment variable, a
// whitespace-separated list of tokens such as
//
//	MUDFLAP_OPTIONS="-mode-check -viol-abort -verbose-violations -persistent-count=16"
//
// Run a program with MUDFLAP_OPTIONS=-help, or "mudflap options", to see
// the full option table.
//
// # How It Works
//
// Each check first consults a small direct-mapped lookup cache. Misses
// search a self-adjusting binary tree of live objects; frequently hit
// objects migrate towards the root. Accesses that match nothing may be
// excused by heuristics: the proc-map heuristic registers the memory
// mapping containing the address as a provisional guess object, which
// real registrations later carve up.
//
// Unregistered objects are kept in a bounded cemetery so that a
// use-after-free report can name the object and where it was freed:
//
//	*******
//	mudflap violation 1 (check): time=1700000000.000123 ptr=0xc000012004 size=4 pc=0x4a1b2c location=`main.go:21'
//	Nearby object 1: region is 4B into
//	mudflap object 0xc0000a6000: name=`buf'
//	bounds=[0xc000012000,0xc00001200f] size=16 area=heap access-count=3
//	alloc time=1700000000.000101 pc=0x4a1a10
//	dealloc time=1700000000.000117 pc=0x4a1a88
//	number of nearby objects: 1
//
// # Examples
//
// See package-level examples in the documentation:
//   - [Example] - Basic registration and checking
//   - [Example_useAfterFree] - Detecting an access to a freed object
package mudflap
