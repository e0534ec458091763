package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Daskott/rolodex/server/accounts"
	"github.com/Daskott/rolodex/server/auth"
	"github.com/Daskott/rolodex/server/images"
	"github.com/Daskott/rolodex/server/models"
	"github.com/Daskott/rolodex/shared"
	"github.com/Daskott/rolodex/utils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func (s *Server) writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		s.logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		s.logg.Info(payLoad.Errors)
	}

	if payLoad.Errors == nil {
		payLoad.Errors = []string{}
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func (s *Server) writeData(rw http.ResponseWriter, data interface{}, statusCode int) {
	s.writeResponse(rw, ResponsePayload{Success: true, Data: data}, statusCode)
}

func (s *Server) writeError(rw http.ResponseWriter, err error) {
	s.writeResponse(rw, ResponsePayload{
		Errors: strings.Split(shared.Message(err), "\n"),
		Kind:   string(shared.KindOf(err)),
	}, statusFor(err))
}

// statusFor maps an error to the HTTP status reported for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, accounts.ErrUserExists):
		return http.StatusConflict
	}

	switch shared.KindOf(err) {
	case shared.ValidationError:
		return http.StatusBadRequest
	case shared.AuthError:
		return http.StatusUnauthorized
	case shared.FetchError, shared.UploadError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v. Malformed bodies are a
// validation error, not a server error.
func decodeBody(r *http.Request, op string, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return shared.Validationf(op, "invalid request body: %v", err)
	}
	return nil
}

func requestClaims(r *http.Request) *auth.RolodexTokenClaims {
	decodedJWT, _ := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
	return decodedJWT.Claims
}

// ---------------------------------------------------------------------------------//
// Middleware Helper functions
// --------------------------------------------------------------------------------//

func (s *Server) decodeAndVerifyAuthHeader(ctx context.Context, authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	// validate that the session behind the token is still active
	tokenClaims, err := s.accounts.Authenticate(ctx, authHeaderList[1])
	if errors.Is(err, shared.ErrSessionRevoked) {
		return DecodedJWT{ErrorMsg: shared.ErrSessionRevoked.Error()}
	}
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func decodeConfig(config *viper.Viper) (shared.ServerConfig, error) {
	serverConfig := shared.ServerConfig{}
	if err := config.Unmarshal(&serverConfig); err != nil {
		return serverConfig, errors.Wrap(err, "unable to decode server config")
	}

	if err := shared.NewValidator().Struct(serverConfig); err != nil {
		return serverConfig, errors.Wrap(err, "invalid server config")
	}

	return serverConfig, nil
}

func serve(logg *zap.SugaredLogger, server *http.Server) {
	logg.Infof("Rolodex server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(logg *zap.SugaredLogger, server *http.Server, store *models.Store, objectStore images.ObjectStore) {
	defer logg.Sync()

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Rolodex server shutdown failed:%+s", err)
	}

	if err := store.Close(); err != nil {
		logg.Errorf("unable to close database: %v", err)
	}

	if closer, ok := objectStore.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logg.Errorf("unable to close image storage: %v", err)
		}
	}

	logg.Infof("Rolodex server stopped properly")
}

// configDirectory retrieves the directory to store rolodex data
// Or logs an error message and then calls os.Exit if it's unable to.
func configDirectory(logg *zap.SugaredLogger, devMode bool) string {
	// Use 'rolodex' folder in home directory for prod
	configFolderName := "rolodex"
	rootDir, err := os.UserHomeDir()
	fatalOnError(logg, err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(logg, err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(logg, err)

	return configDir
}

func fatalOnError(logg *zap.SugaredLogger, err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
