package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	devConfig "github.com/Daskott/rolodex/dev/config"
	"github.com/Daskott/rolodex/server/auth/key"
	"github.com/Daskott/rolodex/server/images"
	"github.com/Daskott/rolodex/shared"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDevConfig(t *testing.T) {
	config := viper.New()
	config.SetConfigType("yaml")
	require.Nil(t, config.ReadConfig(strings.NewReader(devConfig.SERVER_YML)))

	serverConfig, err := decodeConfig(config)
	require.Nil(t, err)
	assert.Equal(t, 3000, serverConfig.Rolodex.Listener.Port)
	assert.Equal(t, time.Hour, serverConfig.Rolodex.AccessTokenTTL)
	assert.Equal(t, "disk", serverConfig.Storage.Provider)

	_, err = key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Rolodex.PrivateKeyPem)
	assert.Nil(t, err, "The dev key should parse")

	config.Set("storage.provider", "ftp")
	_, err = decodeConfig(config)
	assert.NotNil(t, err)
}

func TestNewObjectStore(t *testing.T) {
	dir := t.TempDir()
	config := shared.ServerConfig{
		Rolodex: shared.RolodexConfig{AppURL: "http://localhost:3000/"},
		Storage: shared.StorageConfig{Provider: "disk", Dir: filepath.Join(dir, "images")},
	}

	store, imagesDir, err := newObjectStore(context.Background(), config)
	require.Nil(t, err)
	assert.Equal(t, filepath.Join(dir, "images"), imagesDir)

	publicURL, err := store.(*images.DiskStore).Put(context.Background(), "u1/a.png", "image/png", strings.NewReader("png"))
	assert.Nil(t, err)
	assert.Equal(t, "http://localhost:3000/images/u1/a.png", publicURL, "Disk images are served by the api itself")

	config.Storage.Provider = "ftp"
	_, _, err = newObjectStore(context.Background(), config)
	assert.NotNil(t, err)
}
