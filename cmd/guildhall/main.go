package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gitlab.com/ellera/guildhall/internal/db"
	"gitlab.com/ellera/guildhall/internal/models"
	"gitlab.com/ellera/guildhall/internal/routes"
	"gitlab.com/ellera/guildhall/internal/storage"
)

const usage = `Usage:
	- start
	- migrate [up/down/drop]
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(usage)
		return
	}
	envConfig := models.ReadEnvConfig()
	switch os.Args[1] {
	case "start":
		server := GuildhallServer{EnvConfig: envConfig}
		server.Setup()
		server.Run()
	case "migrate":
		if len(os.Args) < 3 {
			fmt.Print(usage)
			return
		}
		var err error
		switch os.Args[2] {
		case "up":
			err = db.MigrateUp(envConfig.DatabaseURL)
		case "down":
			err = db.MigrateDown(envConfig.DatabaseURL)
		case "drop":
			err = db.Drop(envConfig.DatabaseURL)
		default:
			fmt.Print(usage)
			return
		}
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println("Done")
	default:
		fmt.Print(usage)
	}
}

type GuildhallServer struct {
	models.EnvConfig
	addr       string
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	database   db.SharedDB
	images     *storage.LocalStore
}

func (server *GuildhallServer) setupLogger() {
	var writer io.Writer
	if server.Debug {
		writer = zerolog.ConsoleWriter{Out: os.Stdout}
	} else {
		writer = os.Stdout
	}
	log := zerolog.New(writer).With().Timestamp().Logger()
	if server.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	server.logger = log
}
func (server *GuildhallServer) setupDB() {
	err := db.MigrateUp(server.DatabaseURL)
	if err != nil {
		server.logger.Fatal().Err(err).Send()
	}
	database, err := db.Connect(&server.EnvConfig)
	if err != nil {
		server.logger.Fatal().AnErr("Connecting to db", err).Send()
	}
	server.database = database
}
func (server *GuildhallServer) setupImages() {
	images, err := storage.NewLocalStore(server.UploadDir, server.AppURL+"/images")
	if err != nil {
		server.logger.Fatal().Err(err).Send()
	}
	server.images = images
}
func (server *GuildhallServer) setupRouter() {
	router, err := routes.NewRouter(&server.EnvConfig, &server.database, server.logger, server.images)
	if err != nil {
		server.logger.Fatal().Err(err).Send()
	}
	server.router = router
}
func (server *GuildhallServer) setupHTTPServer() {
	server.addr = fmt.Sprintf(":%s", server.EnvConfig.Port)
	server.httpServer = &http.Server{
		Addr:         server.addr,
		Handler:      server.router,
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 1 * time.Minute,
	}
}
func (server *GuildhallServer) Setup() {
	server.setupLogger()
	server.setupDB()
	server.setupImages()
	server.setupRouter()
	server.setupHTTPServer()
}
func (server *GuildhallServer) Shutdown() {
	if err := server.httpServer.Shutdown(context.Background()); err != nil {
		server.logger.Error().
			Err(err).
			Msg("Error shutting down")
	}
	server.database.Close()
}
func (server *GuildhallServer) Run() {
	server.logger.Info().Str("server_address", server.addr).Msg("Server is starting")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go server.httpServer.ListenAndServe()
	server.logger.Info().Msg("Ready")

	<-ctx.Done()
	stop() // Stop listening for signals
	server.logger.Info().Msg("Shutting down gracefully")
	server.Shutdown()
}
