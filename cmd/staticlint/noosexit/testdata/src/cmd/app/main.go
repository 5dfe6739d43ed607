package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("starting")
	if len(os.Args) > 3 {
		os.Exit(2) // want `запрещён прямой вызов os.Exit`
	}
	defer func() {
		os.Exit(1) // want `запрещён прямой вызов os.Exit`
	}()
	helper()
}

func helper() {
	os.Exit(0)
}
