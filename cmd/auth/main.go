// Command auth runs the jobtab authentication service.
package main

//go:generate swag init -g ../../internal/auth/http/router.go -o ../../api/auth --parseDependency --outputTypes go

import (
	"log"

	"github.com/aussiebroadwan/jobtab/internal/auth/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
