package main

import (
	"flag"
	"log"
)

func main() {
	container := flag.String("container", "manual", "dependency wiring: manual | dig")
	flag.Parse()

	switch *container {
	case "manual":
		startManual()
	case "dig":
		startWithDig()
	default:
		log.Fatalf("unknown container %q", *container)
	}
}
