package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new account private key",
	Long:  `Generates a new ECDSA private key and writes it to the account path under the account name.`,
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) error {
	accountPath, err := cmd.Flags().GetString("account-path")
	if err != nil {
		return err
	}

	accountName, err := cmd.Flags().GetString("account-name")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(accountPath, 0755); err != nil {
		return err
	}

	path := filepath.Join(accountPath, fmt.Sprintf("%s.ecdsa", accountName))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("account %q already exists", accountName)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return err
	}

	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Println("account id:", accountID)

	return nil
}
