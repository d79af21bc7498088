package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mdtanrikulu/dnssec-oracle/api"
	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/log"
)

const (
	defaultConfigPath = "./config.yml"
	defaultHost       = "localhost"
	configFileEnvVar  = config.ConfigFilePath
)

//nolint:gochecknoglobals
var (
	configPath string
	cfg        *config.Config
	apiHost    string
	apiPort    uint16
)

// NewRootCommand creates new root command
func NewRootCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "dnssec-oracle",
		Short: "dnssec-oracle verifies DNSSEC proof chains",
		Long: `An oracle for DNSSEC signed records.

Verifies chains of signed RRSets from a trust anchor down to the
requested record set and collects such proofs from DNS resolvers.`,
		PreRunE:      initConfigPreRun,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd, args)
		},
	}

	c.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file or folder")
	c.PersistentFlags().StringVar(&apiHost, "apiHost", defaultHost, "host of the oracle (API)")
	c.PersistentFlags().Uint16Var(&apiPort, "apiPort", 0, "port of the oracle (API), taken from the config if 0")

	c.AddCommand(newServeCommand(),
		newVerifyCommand(),
		newProveCommand(),
		newAnchorsCommand(),
		newRegistryCommand(),
		NewValidateCommand(),
		NewVersionCommand())

	return c
}

func apiURL(path string) string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(apiHost, strconv.Itoa(int(apiPort))), path)
}

func initConfigPreRun(_ *cobra.Command, _ []string) error {
	return initConfig()
}

func initConfig() error {
	if path, ok := os.LookupEnv(configFileEnvVar); ok {
		configPath = path
	}

	// the default path is optional, an explicitly given one must exist
	loaded, err := config.LoadConfig(configPath, configPath != defaultConfigPath)
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}

	cfg = loaded

	log.ConfigureLogger(cfg.Log)

	if apiPort == 0 {
		return apiAddressFromConfig(cfg.Ports.HTTP)
	}

	return nil
}

// apiAddressFromConfig sets host and port of the API client from the http listen address
func apiAddressFromConfig(address string) error {
	if address == "" {
		return nil
	}

	host, port := "", address

	if _, err := strconv.Atoi(address); err != nil {
		host, port, err = net.SplitHostPort(address)
		if err != nil {
			return fmt.Errorf("can't parse http address '%s': %w", address, err)
		}
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return fmt.Errorf("can't convert port '%s' to number: %w", port, err)
	}

	apiPort = uint16(p)

	if ip := net.ParseIP(host); host != "" && (ip == nil || !ip.IsUnspecified()) {
		apiHost = host
	}

	return nil
}

// readResponse decodes the body of a successful API response into v
func readResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("response NOK, %s %s", resp.Status, apiErr.Error)
		}

		return fmt.Errorf("response NOK, %s %s", resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("can't read response: %w", err)
	}

	return nil
}

// Execute starts the command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
