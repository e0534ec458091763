package cmd

import (
	"context"

	"github.com/Daskott/rolodex/client"
	"github.com/Daskott/rolodex/schema"
	"github.com/Daskott/rolodex/session"
	"github.com/Daskott/rolodex/shared"
	"go.uber.org/zap"
)

// app is what every client command works with: the API client, the session
// and a client that signs requests with the session's token.
type app struct {
	config   shared.ClientConfig
	api      *client.Client
	sessions *session.Manager
	data     *client.Client
}

// clientConfig decodes the client settings and fails fast when the API url
// or key is missing.
func clientConfig() (shared.ClientConfig, error) {
	clientConfig := shared.ClientConfig{}
	if err := config.Unmarshal(&clientConfig); err != nil {
		return clientConfig, formattedError("unable to read config: %v", err)
	}

	if clientConfig.API.URL == "" || clientConfig.API.Key == "" {
		return clientConfig, formattedError(
			"must set 'api.url' and 'api.key' in %s or the env vars ROLODEX_API_URL & ROLODEX_API_KEY", config.ConfigFileUsed())
	}

	if err := shared.NewValidator().Struct(clientConfig); err != nil {
		return clientConfig, formattedError("invalid config: %v", err)
	}

	return clientConfig, nil
}

func newApp(ctx context.Context) (*app, error) {
	clientConfig, err := clientConfig()
	if err != nil {
		return nil, err
	}

	api, err := client.New(clientConfig.API, nil)
	if err != nil {
		return nil, err
	}

	logg := zap.NewNop().Sugar()
	if isDevEnv {
		logg = zap.NewExample().Sugar()
	}

	sessions := session.NewManager(api,
		session.NewFileStore(clientConfig.Auth.SessionFile),
		session.OptionsFrom(clientConfig.Auth),
		logg,
	)

	if err := sessions.Restore(ctx); err != nil {
		return nil, err
	}

	return &app{
		config:   clientConfig,
		api:      api,
		sessions: sessions,
		data:     api.Authorized(sessions),
	}, nil
}

func (a *app) requireUser() (*schema.User, error) {
	user := a.sessions.CurrentUser()
	if user == nil {
		return nil, formattedError("you are not logged in, run 'rolodex login' first")
	}
	return user, nil
}
