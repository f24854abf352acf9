package main

import (
	"net/http"
	"os"
	osSignal "os/signal"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestShutdownSignals(t *testing.T) {
	for _, sig := range []os.Signal{syscall.SIGTERM, os.Interrupt} {
		t.Run(sig.String(), func(t *testing.T) {
			t.Cleanup(func() {
				signalNotify = osSignal.Notify
			})

			var registered []os.Signal
			signalNotify = func(ch chan<- os.Signal, sigs ...os.Signal) {
				registered = sigs
				go func() {
					ch <- sig
				}()
			}

			server := &http.Server{}
			called := make(chan struct{}, 1)
			server.RegisterOnShutdown(func() {
				called <- struct{}{}
			})

			core, logs := observer.New(zap.InfoLevel)
			shutdown(server, 50*time.Millisecond, zap.New(core))

			select {
			case <-called:
			case <-time.After(time.Second):
				t.Fatalf("expected server shutdown callback to execute")
			}
			if len(registered) == 0 {
				t.Fatalf("expected shutdown to subscribe to signals")
			}
			if logs.FilterMessage("shutting down server").Len() != 1 {
				t.Fatalf("expected shutdown to be logged")
			}
			if logs.FilterMessage("graceful shutdown failed").Len() != 0 {
				t.Fatalf("expected graceful shutdown to succeed")
			}
		})
	}
}
