package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/trackline/trackline/pkg/config"
	"github.com/trackline/trackline/pkg/db"
	"github.com/trackline/trackline/pkg/events"
	"github.com/trackline/trackline/pkg/storage"
	natstransport "github.com/trackline/trackline/pkg/transport/nats"
	"github.com/trackline/trackline/services/api"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	database, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to DB: %v", err)
		log.Println("Starting in NO-DB mode (endpoints will fail)")
	}

	// The event bus is optional; without NATS_URL lifecycle events are
	// dropped locally.
	var bus events.Publisher
	if cfg.NATSURL != "" {
		nb, err := natstransport.NewNatsBus(cfg.NATSURL)
		if err != nil {
			log.Fatalf("NATS connect failed: %v", err)
		}
		defer nb.Close()
		bus = nb
	}

	files := storage.NewDiskStore(cfg.UploadDir)
	router := api.NewRouter(database, files, bus, cfg.JWTSecret)

	fmt.Printf("Trackline API Service starting on port %s...\n", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
