package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/sameeradaveen/lms-new-main/core"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// start CLI
	cli := commandLine{
		conf:   core.NewConfig(),
		client: &http.Client{Timeout: 10 * time.Second},
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
