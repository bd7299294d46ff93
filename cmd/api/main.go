package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"crash/internal/server"
)

func main() {
	srv := server.New()
	srv.RegisterFiberRoutes()

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil || port == 0 {
		port = 8080
	}

	go func() {
		if err := srv.Listen(":" + strconv.Itoa(port)); err != nil {
			log.Fatalf("[SERVER] Listen failed: %v", err)
		}
	}()

	log.Printf("[SERVER] Listening on :%d", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := srv.Shutdown(); err != nil {
		log.Printf("[SERVER] Shutdown error: %v", err)
	}
	if err := srv.App.Shutdown(); err != nil {
		log.Printf("[SERVER] Fiber shutdown error: %v", err)
	}
}
