package main

import (
	"log"

	"defect-detective-web/internal/shared/config"
	"defect-detective-web/internal/shared/server"
)

func main() {
	cfg := config.Load()
	r, err := server.NewRouter(cfg)
	if err != nil {
		log.Fatalf("router setup: %v", err)
	}

	addr := server.Addr(cfg.Port)
	log.Printf("Starting web server on %s (backend %s)", addr, cfg.BackendURL)

	if err := r.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
