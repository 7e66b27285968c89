package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/genomatch/dnalabbackend/config"
	"github.com/genomatch/dnalabbackend/database"
	"github.com/genomatch/dnalabbackend/handlers"
	"github.com/genomatch/dnalabbackend/repository"
	"github.com/genomatch/dnalabbackend/services"
	"github.com/genomatch/dnalabbackend/storage"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.StoragePath, cfg.UploadsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to access underlying database: %v", err)
	}
	defer sqlDB.Close()

	store, err := storage.NewLocalStorage(cfg.StoragePath, filepath.Base(cfg.UploadsPath), cfg.BackendURL, cfg.URLSigningKey)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize file store: %v", err)
	}

	personRepo := repository.NewPersonRepository(db)
	locusRepo := repository.NewLocusRepository(db)
	fileRepo := repository.NewUploadedFileRepository(db)

	resolver := services.NewResolver(personRepo, services.ResolverThresholds{
		MatchThresholdPercent: cfg.MatchThresholdPercent,
		MinComparedLoci:       cfg.MinComparedLoci,
	})
	matcher := services.NewMatcher(personRepo)
	persister := services.NewPersister(db, store, resolver, services.PersisterConfig{
		MinValidLoci:  cfg.MinValidLoci,
		MinConfidence: cfg.MinConfidence,
	})
	extractor := services.NewHTTPExtractor(cfg.ExtractorURL)
	if cfg.ExtractorURL == "" {
		log.Printf("Warning: EXTRACTOR_URL is not set; report uploads will be rejected")
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing uploaded reports in: %s", cfg.UploadsPath)
	log.Printf("Match threshold: %.1f%% over at least %d loci", cfg.MatchThresholdPercent, cfg.MinComparedLoci)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(corsHandler.Handler)

	uploadHandler := &handlers.UploadHandler{Cfg: cfg, Extractor: extractor, Persister: persister, Matcher: matcher}
	personHandler := &handlers.PersonHandler{PersonRepo: personRepo, LocusRepo: locusRepo, FileRepo: fileRepo, Store: store}
	fileHandler := &handlers.FileHandler{
		FileRepo:   fileRepo,
		PersonRepo: personRepo,
		Store:      store,
		URLTTL:     time.Duration(cfg.URLTTLSeconds) * time.Second,
		SigningKey: []byte(cfg.URLSigningKey),
	}
	listHandler := &handlers.ListHandler{DB: sqlDB}

	r.Route("/api/dna", func(r chi.Router) {
		r.Post("/upload", uploadHandler.UploadFile)
		r.Post("/match", uploadHandler.MatchFile)
		r.Get("/list", listHandler.ListFamilies)

		r.Route("/people", func(r chi.Router) {
			r.Delete("/", personHandler.DeletePersons)
			r.Route("/{person_id}", func(r chi.Router) {
				r.Get("/", personHandler.GetPerson)
				r.Patch("/", personHandler.UpdatePerson)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Route("/{file_id}", func(r chi.Router) {
				r.Get("/url", fileHandler.GetFileURL)
				r.Delete("/", fileHandler.DeleteFile)
			})
		})
	})

	r.Get("/files/*", fileHandler.ServeFile)
	log.Printf("Registered report file server at /files/*")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
