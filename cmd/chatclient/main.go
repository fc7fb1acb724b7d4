package main

import (
	"flag"
	"log"

	approuters "Outreach/internal/app_routers"
	"Outreach/internal/configuration"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file, empty for env only")
	flag.Parse()

	container, err := configuration.BuildContainer(*configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}
