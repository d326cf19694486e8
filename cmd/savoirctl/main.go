package main

import (
	"fmt"
	"os"
)

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
