package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	goredis "github.com/redis/go-redis/v9"

	"banter/internal/chat"
	"banter/internal/commands"
	"banter/internal/config"
	"banter/internal/handlers/apiserver"
	"banter/internal/handlers/chatserver"
	"banter/internal/kafka"
	"banter/internal/middleware"
	"banter/internal/redis"
	"banter/internal/resolve"
	"banter/internal/storage"
	"banter/internal/transform"
	ws "banter/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := log.New(os.Stdout, "[banter] ", log.LstdFlags)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		logger.Fatalf("migrate database: %v", err)
	}
	repo := storage.NewGormRepository(db)

	// A previous crash can leave phantom connections behind; clear them so
	// presence starts from a clean slate.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := repo.RemoveAllClients(startupCtx); err != nil {
		logger.Fatalf("clear stale connections: %v", err)
	}
	cancelStartup()

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	blacklist := redis.NewRedisTokenBlacklist(redisClient)

	groups := chat.NewGroups()
	wsHub := ws.NewHub(logger)

	var journal chat.Journal
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatalf("connect kafka: %v", err)
		}
		journal = kafka.NewEventJournal(producer, cfg.Kafka.EventsTopic, logger)
	}

	notifier := chat.NewNotifier(groups, wsHub, journal)
	service := chat.NewService(repo)
	text := transform.New(chat.NewRoomNamer(repo))
	resolver := resolve.NewProcessor(cfg.Chat.ProviderTimeout,
		resolve.NewImageProvider(),
		resolve.NewHTMLTitleProvider(&http.Client{Timeout: cfg.Chat.ProviderTimeout}),
	)

	hub := chat.NewHub(repo, service, notifier, groups, text, resolver, cfg.Chat, cfg.Auth.RequireIdentity, logger)
	hub.SetDispatcher(commands.NewManager(hub))
	hub.SetAppVersion(cfg.AppVersion)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := chat.NewSweeper(repo, notifier, cfg.Chat.SweepInterval, cfg.Chat.IdleAfter, logger)
	go sweeper.Run(rootCtx)

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewNoticeConsumer(cfg.Kafka, logger)
		if err != nil {
			logger.Fatalf("connect kafka consumer: %v", err)
		}
		defer consumer.Close()
		go consumer.Run(rootCtx, func(notice kafka.Notice) {
			if notice.Room == "" {
				notifier.Broadcast(notice.Content)
				return
			}
			notifier.PostNotification(notice.Room, notice.Content)
		})
	}

	wsHandler := chatserver.NewWebSocketHandler(hub, wsHub, cfg.Auth.JWTSecretKey, blacklist, cfg.WebSocket, logger)
	authHandler := apiserver.NewAuthHandler(repo, blacklist, cfg.Auth, logger)

	router := mux.NewRouter()
	router.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	api := router.PathPrefix("/api/auth").Subrouter()
	api.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	authed := api.PathPrefix("").Subrouter()
	authed.Use(middleware.Auth(cfg.Auth.JWTSecretKey, blacklist))
	authed.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.CORS.AllowedHeaders),
		handlers.MaxAge(cfg.CORS.MaxAge),
	}
	if cfg.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	cors := handlers.CORS(corsOptions...)

	server := &http.Server{
		Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:        handlers.LoggingHandler(os.Stdout, cors(router)),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Printf("%s %s listening on %s", cfg.AppName, cfg.AppVersion, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("serve: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	if producer != nil {
		producer.Close()
	}
	if err := redisClient.Close(); err != nil {
		logger.Printf("close redis: %v", err)
	}
	logger.Println("goodbye")
}
