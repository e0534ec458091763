/*
Copyright © 2021 Edmond Cotterell

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	devConfig "github.com/Daskott/rolodex/dev/config"
	"github.com/Daskott/rolodex/server"
	"github.com/Daskott/rolodex/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverConfigFile string

func createServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start a rolodex server",
		Long: `The rolodex server stores users & their contacts, signs users in,
hosts contact images and imports LinkedIn profiles`,
		Run: func(cmd *cobra.Command, args []string) {
			server.Start(serverConfig(), isDevEnv)
		},
	}

	cmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")

	return cmd
}

func serverConfig() *viper.Viper {
	serverViper := viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	if serverConfigFile == "" {
		log.Panic("the server config file must be set with --sconfig")
	}

	serverViper.SetConfigFile(serverConfigFile)
	serverViper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := serverViper.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return serverViper
}

// devConfigFilePath returns dev/config/server.yml, creating it on first use.
func devConfigFilePath() string {
	configDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	configFilePath := filepath.Join(configDir, "dev", "config", "server.yml")
	if !utils.FileExist(configFilePath) {
		err = utils.CreateDirIfNotExist(filepath.Dir(configFilePath))
		if err == nil {
			err = ioutil.WriteFile(configFilePath, []byte(devConfig.SERVER_YML), 0600)
		}
		if err != nil {
			log.Panic(err)
		}
	}

	return configFilePath
}
