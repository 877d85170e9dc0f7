// Command upscan starts the scanner API server.
// Configuration comes from the environment: LISTEN_ADDR, BROWSER_REMOTE_URL,
// SCANNER_SETTINGS, STORAGE_ROOT.
package main

import (
	"log"

	"upscan/internal/config"
	"upscan/internal/server"
)

func main() {
	cfg := config.FromEnv()

	srv, err := server.NewServer(server.Config{App: cfg})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	defer srv.Close()

	log.Printf("Listening on %s", cfg.ListenAddr)
	if err := srv.HTTPServer().ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
