package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Daskott/rolodex/colors"
	"github.com/Daskott/rolodex/shared"
	"github.com/gorilla/mux"
)

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			responseStatus := colors.Green(responseWriter.Status)
			if responseWriter.Status >= 400 {
				responseStatus = colors.Red(responseWriter.Status)
			}

			log.Println(
				r.Method,
				r.URL.Path,
				responseStatus,
				colors.Yellow(fmt.Sprintf("[%v]", time.Since(start))))
		}()

		next.ServeHTTP(responseWriter, r)
	})
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("apikey")
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.config.Rolodex.PublicAPIKey)) != 1 {
			w.Header().Add("Content-Type", "application/json")
			s.writeResponse(w, ResponsePayload{Errors: []string{"invalid api key"}, Kind: string(shared.AuthError)}, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initialContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")

		// Add decoded token & server to request context
		ctx := context.WithValue(r.Context(), RequestContextKey("decodedJWT"), s.decodeAndVerifyAuthHeader(r.Context(), r.Header.Get("Authorization")))
		ctx = context.WithValue(ctx, RequestContextKey("server"), s)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func protectedRouteMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		s := r.Context().Value(RequestContextKey("server")).(*Server)

		decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
		if decodedJWT.ErrorMsg != "" {
			s.writeResponse(w, ResponsePayload{Errors: []string{decodedJWT.ErrorMsg}, Kind: string(shared.AuthError)}, http.StatusUnauthorized)
			return
		}

		// client is only able to view & change their own records
		if vars["uid"] != "" && vars["uid"] != decodedJWT.Claims.Subject {
			s.writeResponse(w, ResponsePayload{Errors: []string{shared.ErrForbidden.Error()}, Kind: string(shared.AuthError)}, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
