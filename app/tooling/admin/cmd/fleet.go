package cmd

import (
	"encoding/json"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Print the fleet hash and public key of a fleet key",
	RunE:  fleetRun,
}

func init() {
	rootCmd.AddCommand(fleetCmd)
}

func fleetRun(cmd *cobra.Command, args []string) error {
	privateKey, err := loadPrivateKey()
	if err != nil {
		return err
	}

	pub, err := signature.EncodePublicKey(privateKey)
	if err != nil {
		return err
	}

	out := struct {
		Name      string `json:"name"`
		Hash      string `json:"hash"`
		PublicKey string `json:"public_key"`
	}{
		Name:      fleetName,
		Hash:      signature.FleetHash(pub),
		PublicKey: signature.StripPublicKey(pub),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
