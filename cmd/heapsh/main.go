// Command heapsh is an interactive shell over a single heap.Allocator,
// useful for poking at allocator behaviour by hand (malloc a block,
// resize or free it, validate, watch the classification change). It has
// no command that writes into a block's payload or fences.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/intuitivelabs/bytescase"

	"github.com/intuitivelabs/fenceheap/heap"
)

// blocks maps the small integer handles this shell hands out to the real
// unsafe.Pointers returned by the allocator, so commands can be typed as
// "free 2" instead of a raw hex address.
var blocks = map[int]unsafe.Pointer{}
var nextHandle = 1

func main() {
	var a heap.Allocator
	if err := a.Setup(); err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}
	defer a.Clean()

	fmt.Println("heapsh - type 'help' for commands")
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		dispatch(&a, fields)
	}
}

// isCmd compares word against name case-insensitively.
func isCmd(word, name string) bool {
	return bytescase.CmpEq([]byte(word), []byte(name))
}

func dispatch(a *heap.Allocator, fields []string) {
	cmd, args := fields[0], fields[1:]
	switch {
	case isCmd(cmd, "help"):
		printHelp()
	case isCmd(cmd, "malloc"):
		cmdMalloc(a, args)
	case isCmd(cmd, "calloc"):
		cmdCalloc(a, args)
	case isCmd(cmd, "realloc"):
		cmdRealloc(a, args)
	case isCmd(cmd, "free"):
		cmdFree(a, args)
	case isCmd(cmd, "validate"):
		fmt.Println(a.Validate())
	case isCmd(cmd, "ptrtype"):
		cmdPtrType(a, args)
	case isCmd(cmd, "largest"):
		fmt.Println(a.LargestUsedBlockSize())
	case isCmd(cmd, "stats"):
		cmdStats(a)
	case isCmd(cmd, "clean"):
		a.Clean()
		blocks = map[int]unsafe.Pointer{}
		if err := a.Setup(); err != nil {
			fmt.Fprintln(os.Stderr, "re-setup failed:", err)
			os.Exit(1)
		}
	case isCmd(cmd, "quit"), isCmd(cmd, "exit"):
		os.Exit(0)
	default:
		fmt.Println("unknown command:", cmd)
	}
}

func printHelp() {
	fmt.Println(`commands:
  malloc <size>            allocate, prints a block handle
  calloc <n> <size>        allocate n*size zeroed bytes
  realloc <handle> <size>  resize a block, handle is re-pointed in place
  free <handle>            release a block
  validate                 print the heap validation code (0 == ok)
  ptrtype <handle>         classify a block's pointer
  largest                  print the largest in-use block size
  stats                    print lifetime allocation counters
  clean                    tear down and re-setup the heap
  quit                     exit`)
}

func cmdMalloc(a *heap.Allocator, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: malloc <size>")
		return
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Println("bad size:", err)
		return
	}
	ptr := a.Malloc(uintptr(n))
	if ptr == nil {
		fmt.Println("malloc failed")
		return
	}
	h := nextHandle
	nextHandle++
	blocks[h] = ptr
	fmt.Printf("handle %d -> %#x\n", h, uintptr(ptr))
}

func cmdCalloc(a *heap.Allocator, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: calloc <n> <size>")
		return
	}
	n, err1 := strconv.ParseUint(args[0], 10, 64)
	size, err2 := strconv.ParseUint(args[1], 10, 64)
	if err1 != nil || err2 != nil {
		fmt.Println("bad arguments")
		return
	}
	ptr := a.Calloc(uintptr(n), uintptr(size))
	if ptr == nil {
		fmt.Println("calloc failed")
		return
	}
	h := nextHandle
	nextHandle++
	blocks[h] = ptr
	fmt.Printf("handle %d -> %#x\n", h, uintptr(ptr))
}

func cmdRealloc(a *heap.Allocator, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: realloc <handle> <size>")
		return
	}
	h, err1 := strconv.Atoi(args[0])
	size, err2 := strconv.ParseUint(args[1], 10, 64)
	ptr, ok := blocks[h]
	if err1 != nil || err2 != nil || !ok {
		fmt.Println("bad arguments")
		return
	}
	newPtr := a.Realloc(ptr, uintptr(size))
	if newPtr == nil && size != 0 {
		fmt.Println("realloc failed")
		return
	}
	blocks[h] = newPtr
	fmt.Printf("handle %d -> %#x\n", h, uintptr(newPtr))
}

func cmdFree(a *heap.Allocator, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: free <handle>")
		return
	}
	h, err := strconv.Atoi(args[0])
	ptr, ok := blocks[h]
	if err != nil || !ok {
		fmt.Println("no such handle")
		return
	}
	a.Free(ptr)
	delete(blocks, h)
}

func cmdPtrType(a *heap.Allocator, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: ptrtype <handle>")
		return
	}
	h, err := strconv.Atoi(args[0])
	ptr, ok := blocks[h]
	if err != nil || !ok {
		fmt.Println("no such handle")
		return
	}
	fmt.Println(a.GetPointerType(ptr))
}

func cmdStats(a *heap.Allocator) {
	s := a.Stats()
	fmt.Printf("total=%d news=%d frees=%d failures=%d\n",
		s.TotalSize.Get(), s.NewCalls.Get(), s.FreeCalls.Get(), s.Failures.Get())
}
