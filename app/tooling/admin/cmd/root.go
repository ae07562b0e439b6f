// Package cmd contains the admin commands.
package cmd

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	fleetName string
	fleetPath string
)

const keyExtension = ".pem"

func init() {
	rootCmd.PersistentFlags().StringVarP(&fleetName, "fleet", "f", "fleet", "Name of the fleet key.")
	rootCmd.PersistentFlags().StringVarP(&fleetPath, "fleet-path", "p", "zblock/fleets/", "Path to the directory with fleet keys.")
}

var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Ledger administration",
	SilenceUsage: true,
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	name := fleetName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(fleetPath, name)
}

func loadPrivateKey() (*rsa.PrivateKey, error) {
	path := getPrivateKeyPath()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	key, err := signature.DecodePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("decoding key %s: %w", path, err)
	}

	return key, nil
}
