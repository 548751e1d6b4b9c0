// Package cmd supports the command line interface for the wallet.
package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "A wallet for the blockchain",
	Long:  `A wallet to create accounts, query balances and send value on the blockchain.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("account-path", "p", "zblock/accounts", "Path to the directory with the account private keys.")
	rootCmd.PersistentFlags().StringP("account-name", "a", "private", "The account to use.")
	rootCmd.PersistentFlags().StringP("url", "u", "http://localhost:8080", "Url of the node public API.")
}

// getPrivateKey loads the private key for the configured account.
func getPrivateKey(cmd *cobra.Command) (*ecdsa.PrivateKey, error) {
	accountPath, err := cmd.Flags().GetString("account-path")
	if err != nil {
		return nil, err
	}

	accountName, err := cmd.Flags().GetString("account-name")
	if err != nil {
		return nil, err
	}

	path := filepath.Join(accountPath, fmt.Sprintf("%s.ecdsa", accountName))
	return crypto.LoadECDSA(path)
}

// getURL returns the node url to issue requests against.
func getURL(cmd *cobra.Command) (string, error) {
	return cmd.Flags().GetString("url")
}
