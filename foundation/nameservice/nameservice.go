// Package nameservice reads the zblock/fleets folder and creates a name
// service lookup for the fleet hashes of the keys it holds.
package nameservice

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/cryptoverse/foundation/blockchain/signature"
)

// keyExt is the extension of a PEM encoded fleet key.
const keyExt = ".pem"

// NameService maintains a map of fleet hashes for name lookup.
type NameService struct {
	fleets map[string]string
}

// New constructs a name service with the fleets from the keys in the folder.
// The file name without its extension is the fleet's name.
func New(root string) (*NameService, error) {
	ns := NameService{
		fleets: make(map[string]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != keyExt {
			return nil
		}

		data, err := os.ReadFile(fileName)
		if err != nil {
			return err
		}

		privateKey, err := signature.DecodePrivateKey(data)
		if err != nil {
			return fmt.Errorf("%s: %w", fileName, err)
		}

		pub, err := signature.EncodePublicKey(privateKey)
		if err != nil {
			return fmt.Errorf("%s: %w", fileName, err)
		}

		ns.fleets[signature.FleetHash(pub)] = strings.TrimSuffix(path.Base(fileName), keyExt)

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified fleet hash.
func (ns *NameService) Lookup(fleetHash string) string {
	name, exists := ns.fleets[fleetHash]
	if !exists {
		return fleetHash
	}
	return name
}

// Copy returns a copy of the map of fleet hashes and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.fleets))
	for fleet, name := range ns.fleets {
		cpy[fleet] = name
	}
	return cpy
}
