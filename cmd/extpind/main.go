package main

import (
	"log"

	"github.com/extpin/extpin/core/daemon"
	"github.com/extpin/extpin/core/infra/buildinfo"
	"github.com/extpin/extpin/core/infra/config"
)

func main() {
	log.Println("extpind starting...")
	buildinfo.Log("extpind")
	cfg := config.Load()
	if err := daemon.Run(cfg); err != nil {
		log.Fatalf("extpind error: %v", err)
	}
}
