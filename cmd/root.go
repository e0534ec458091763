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
	"os"
	"path/filepath"

	"github.com/Daskott/rolodex/colors"
	"github.com/Daskott/rolodex/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	config  *viper.Viper

	isDevEnv  bool
	isTestEnv bool

	warningLabel = colors.Yellow("Warning:")
)

// rootCmd represents the base command when called without any subcommands
var rootCmd *cobra.Command

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd = createRootCmd()
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "rolodex",
		Short: `rolodex is a small CRM for the people you know.

Register or log in, then keep track of your contacts: how to reach them,
where to find them online and what you talked about last time.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rolodex.yaml)")
	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
	cmd.PersistentFlags().BoolVarP(&isTestEnv, "test", "", false, "run in test mode")

	cmd.AddCommand(
		createServerCmd(),
		createRegisterCmd(),
		createLoginCmd(),
		createLogoutCmd(),
		createWhoamiCmd(),
		createAuthCmd(),
		createContactsCmd(),
	)

	return cmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config = viper.New()

	if cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(cfgFile)
	} else {
		configName, configDir, err := defaultCfgNameAndDir()
		cobra.CheckErr(err)

		// If config file is not found, create one using defaultConfigValue
		configFilePath := filepath.Join(configDir, configName)
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			err = ioutil.WriteFile(configFilePath, []byte(defaultConfigValue()), 0600)
			cobra.CheckErr(err)
		}

		config.AddConfigPath(configDir)
		config.SetConfigType("yaml")
		config.SetConfigName(configName)
	}

	// The env vars override whatever is in the config file
	config.BindEnv("api.url", "ROLODEX_API_URL")
	config.BindEnv("api.key", "ROLODEX_API_KEY")

	config.SetDefault("auth.autoRefreshToken", true)
	config.SetDefault("auth.persistSession", true)
	config.SetDefault("auth.detectSessionInUrl", true)
	config.SetDefault("auth.flowType", "pkce")
	config.SetDefault("auth.sessionFile", defaultSessionFile())

	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err == nil && !isTestEnv {
		fmt.Fprintln(os.Stderr, "Using config file:", config.ConfigFileUsed())
	}
}

func defaultCfgNameAndDir() (configName string, configDir string, err error) {
	configName = ".rolodex.yaml"

	// Use home directory for production
	configDir, err = os.UserHomeDir()
	if err != nil {
		return "", "", err
	}

	if isDevEnv || isTestEnv {
		configName = ".rolodex.dev.yaml"
		configDir, err = os.Getwd()
		if err != nil {
			return "", "", err
		}

		if isTestEnv {
			configName = ".rolodex.yaml"
			configDir = filepath.Join(configDir, "test-fixtures")
		}
	}

	return configName, configDir, err
}

func defaultSessionFile() string {
	if isDevEnv || isTestEnv {
		dir, err := os.Getwd()
		if err == nil {
			return filepath.Join(dir, "dev", "session.json")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rolodex", "session.json")
}

// defaultConfigValue returns the default content for .rolodex.yaml
func defaultConfigValue() string {
	return `# Where your rolodex server lives and its public api key.
# Both can also be set with ROLODEX_API_URL & ROLODEX_API_KEY.
api:
  url:
  key:

auth:
  autoRefreshToken: true
  persistSession: true
  detectSessionInUrl: true
  # pkce or implicit
  flowType: pkce
`
}

func formattedError(format string, a ...interface{}) error {
	return fmt.Errorf(colors.Red(format), a...)
}
