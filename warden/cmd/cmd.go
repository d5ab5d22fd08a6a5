package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodepulse/nodepulse/pkg/logger"
	wardenapp "github.com/nodepulse/nodepulse/warden/app"
)

func init() {
	WardenCmd.Flags().StringP("config-name", "c", "", "Configuration file name without extension")
	WardenCmd.Flags().StringP("config-dir", "d", "", "Configuration file directory path")
}

func RunWardenApp(cmd *cobra.Command, args []string) {
	configName, configDirPath := getConfigInfo(cmd)
	logger.InitLogger()
	app, err := wardenapp.NewRestApp(configName, configDirPath)
	if err != nil {
		logger.Logger(context.Background()).Fatal().Err(err).Msg("failed to create rest app")
	}
	app.Run()
}

func getConfigInfo(cmd *cobra.Command) (string, string) {
	configName := "warden_config"
	configDirPath := ""
	if cmd != nil {
		configNameFlag, err := cmd.Flags().GetString("config-name")
		if err == nil && configNameFlag != "" {
			configName = configNameFlag
		}
		configPathFlag, err := cmd.Flags().GetString("config-dir")
		if err == nil && configPathFlag != "" {
			configDirPath = configPathFlag
		}
	}
	if envConfigName := os.Getenv("WARDEN_CONFIG_NAME"); envConfigName != "" {
		configName = envConfigName
	}
	if envConfigPath := os.Getenv("WARDEN_CONFIG_DIR_PATH"); envConfigPath != "" {
		configDirPath = envConfigPath
	}
	return configName, configDirPath
}

var WardenCmd = &cobra.Command{
	Run: RunWardenApp,
	Use: "warden",
}
