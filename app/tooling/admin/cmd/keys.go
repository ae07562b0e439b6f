package cmd

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	keyBits  int
	keyForce bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate a new fleet key",
	RunE:  keysRun,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.Flags().IntVarP(&keyBits, "bits", "b", 2048, "Size of the RSA key.")
	keysCmd.Flags().BoolVar(&keyForce, "force", false, "Replace an existing key.")
}

func keysRun(cmd *cobra.Command, args []string) error {
	path := getPrivateKeyPath()

	if _, err := os.Stat(path); err == nil && !keyForce {
		return fmt.Errorf("key %s already exists", path)
	}

	if err := os.MkdirAll(fleetPath, 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	if err := os.WriteFile(path, signature.EncodePrivateKey(privateKey), 0600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}

	pub, err := signature.EncodePublicKey(privateKey)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", signature.FleetHash(pub), path)
	return nil
}
