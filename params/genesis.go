package params

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// genesisFile is the GENESIS_FILE layout:
//
//	accounts:
//	  - address: "0x..."
//	    balance: 1000
type genesisFile struct {
	Accounts []struct {
		Address string `yaml:"address"`
		Balance int64  `yaml:"balance"`
	} `yaml:"accounts"`
}

// LoadGenesisFile reads genesis balances from a YAML file
func LoadGenesisFile(path string) ([]GenesisBalance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gf genesisFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]GenesisBalance, 0, len(gf.Accounts))
	for i, acc := range gf.Accounts {
		if !common.IsHexAddress(acc.Address) {
			return nil, fmt.Errorf("account %d: invalid address %q", i, acc.Address)
		}
		if acc.Balance < 0 {
			return nil, fmt.Errorf("account %d: negative balance", i)
		}
		out = append(out, GenesisBalance{Address: common.HexToAddress(acc.Address), Balance: acc.Balance})
	}
	return out, nil
}
