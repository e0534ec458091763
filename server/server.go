package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Daskott/rolodex/server/accounts"
	"github.com/Daskott/rolodex/server/auth/key"
	"github.com/Daskott/rolodex/server/gateway"
	"github.com/Daskott/rolodex/server/gstorage"
	"github.com/Daskott/rolodex/server/images"
	"github.com/Daskott/rolodex/server/logger"
	"github.com/Daskott/rolodex/server/models"
	"github.com/Daskott/rolodex/server/profile"
	"github.com/Daskott/rolodex/server/s3storage"
	"github.com/Daskott/rolodex/shared"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Server holds everything a request handler needs. It is built once at
// startup and shared by all requests.
type Server struct {
	config   shared.ServerConfig
	store    *models.Store
	gateway  *gateway.Gateway
	accounts *accounts.Service
	uploader *images.Uploader
	profiles *profile.Fetcher
	keyPair  *key.KeyPair
	validate *validator.Validate
	logg     *zap.SugaredLogger

	// imagesDir is set when images are kept on local disk
	imagesDir string
}

type Dependencies struct {
	Store       *models.Store
	KeyPair     *key.KeyPair
	ObjectStore images.ObjectStore
	Logger      *zap.SugaredLogger
	HTTPClient  *http.Client
	ImagesDir   string
}

func NewServer(config shared.ServerConfig, deps Dependencies) *Server {
	validate := shared.NewValidator()

	return &Server{
		config:  config,
		store:   deps.Store,
		gateway: gateway.New(deps.Store, validate),
		accounts: accounts.NewService(deps.Store, deps.KeyPair, validate, deps.Logger, accounts.Options{
			AccessTokenTTL: config.Rolodex.AccessTokenTTL,
			SessionTTL:     config.Rolodex.SessionTTL,
		}),
		uploader:  images.NewUploader(deps.ObjectStore, deps.HTTPClient, config.Storage.Prefix),
		profiles:  profile.NewFetcher(config.Profile, deps.HTTPClient),
		keyPair:   deps.KeyPair,
		validate:  validate,
		logg:      deps.Logger,
		imagesDir: deps.ImagesDir,
	}
}

func Start(config *viper.Viper, devMode bool) {
	logg := logger.NewLogger(devMode)

	serverConfig, err := decodeConfig(config)
	fatalOnError(logg, err)

	store, err := models.Open(serverConfig.Database, configDirectory(logg, devMode))
	fatalOnError(logg, err)

	keyPair, err := key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Rolodex.PrivateKeyPem)
	fatalOnError(logg, err)

	objectStore, imagesDir, err := newObjectStore(context.Background(), serverConfig)
	fatalOnError(logg, err)

	s := NewServer(serverConfig, Dependencies{
		Store:       store,
		KeyPair:     keyPair,
		ObjectStore: objectStore,
		Logger:      logg,
		ImagesDir:   imagesDir,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%v", serverConfig.Rolodex.Listener.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go serve(logg, server)

	// Wait for an interrupt
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	cleanup(logg, server, store, objectStore)
}

// Router wires every route of the rolodex API.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	if s.imagesDir != "" {
		router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", http.FileServer(http.Dir(s.imagesDir))))
	}

	api := router.PathPrefix("/").Subrouter()
	api.Use(s.apiKeyMiddleware)
	api.Use(s.initialContextMiddleware)

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/signup", s.signUp).Methods("POST")
	authRouter.HandleFunc("/token", s.token).Methods("POST")
	authRouter.HandleFunc("/jwks", s.jwks).Methods("GET")

	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(protectedRouteMiddleware)
	authProtected.HandleFunc("/logout", s.logout).Methods("POST")
	authProtected.HandleFunc("/user", s.getAuthUser).Methods("GET")
	authProtected.HandleFunc("/user", s.deleteAuthUser).Methods("DELETE")
	authProtected.HandleFunc("/authorize", s.authorize).Methods("POST")

	profilesRouter := api.PathPrefix("/profiles").Subrouter()
	profilesRouter.Use(protectedRouteMiddleware)
	profilesRouter.HandleFunc("/linkedin", s.fetchLinkedInProfile).Methods("GET")

	usersRouter := api.PathPrefix("/users").Subrouter()
	usersRouter.Use(protectedRouteMiddleware)
	usersRouter.HandleFunc("", s.createProfile).Methods("POST")
	usersRouter.HandleFunc("/{uid}", s.findProfile).Methods("GET")
	usersRouter.HandleFunc("/{uid}/contacts", s.listContacts).Methods("GET")
	usersRouter.HandleFunc("/{uid}/contacts", s.createContact).Methods("POST")
	usersRouter.HandleFunc("/{uid}/contacts/{id}", s.updateContact).Methods("PUT")
	usersRouter.HandleFunc("/{uid}/contacts/{id}", s.deleteContact).Methods("DELETE")
	usersRouter.HandleFunc("/{uid}/contacts/{id}/contact_methods", s.addContactMethod).Methods("POST")
	usersRouter.HandleFunc("/{uid}/contacts/{id}/social_links", s.addSocialLink).Methods("POST")
	usersRouter.HandleFunc("/{uid}/contacts/{id}/conversations", s.addConversation).Methods("POST")
	usersRouter.HandleFunc("/{uid}/contact_methods/{id}", s.updateContactMethod).Methods("PUT")
	usersRouter.HandleFunc("/{uid}/social_links/{id}", s.updateSocialLink).Methods("PUT")
	usersRouter.HandleFunc("/{uid}/conversations/{id}", s.updateConversation).Methods("PUT")
	usersRouter.HandleFunc("/{uid}/images", s.uploadImage).Methods("POST")
	usersRouter.HandleFunc("/{uid}/images/remote", s.uploadRemoteImage).Methods("POST")

	return router
}

// newObjectStore picks where contact images are kept. The returned directory
// is only set for disk storage.
func newObjectStore(ctx context.Context, config shared.ServerConfig) (images.ObjectStore, string, error) {
	storage := config.Storage

	switch storage.Provider {
	case "gcs":
		store, err := gstorage.NewGStorage(config.Google.ApplicationCredentials, storage.Bucket, storage.PublicBaseURL)
		return store, "", err
	case "s3":
		store, err := s3storage.NewS3Storage(ctx, config.S3, storage.Bucket, storage.PublicBaseURL)
		return store, "", err
	case "disk":
		dir, err := filepath.Abs(storage.Dir)
		if err != nil {
			return nil, "", err
		}

		baseURL := storage.PublicBaseURL
		if baseURL == "" {
			baseURL = strings.TrimSuffix(config.Rolodex.AppURL, "/") + "/images"
		}

		store, err := images.NewDiskStore(dir, baseURL)
		return store, dir, err
	default:
		return nil, "", fmt.Errorf("unsupported storage provider %q", storage.Provider)
	}
}
