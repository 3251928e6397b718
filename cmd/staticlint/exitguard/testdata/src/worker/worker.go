package worker

import (
	"errors"
	"log"
	"os"
)

func stop(code int) {
	os.Exit(code) // want `os.Exit ends the process outside package main`
}

func fail(err error) {
	log.Fatalf("failed: %v", err) // want `log.Fatalf ends the process outside package main`
}

func fatal(l *log.Logger) {
	l.Fatal("boom") // want `log.Fatal ends the process outside package main`
}

func fine() error {
	log.Printf("still running")
	return errors.New("returned instead")
}
