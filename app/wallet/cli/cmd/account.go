package cmd

import (
	"fmt"

	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the account id",
	Long:  `Prints the account id derived from the configured private key.`,
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	privateKey, err := getPrivateKey(cmd)
	if err != nil {
		return err
	}

	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)
	fmt.Println("account id:", accountID)

	return nil
}
