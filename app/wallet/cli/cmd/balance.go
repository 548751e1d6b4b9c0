package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the account balance",
	Long:  `Queries the node for the total unspent value owned by the account.`,
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	privateKey, err := getPrivateKey(cmd)
	if err != nil {
		return err
	}
	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)

	url, err := getURL(cmd)
	if err != nil {
		return err
	}

	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/list/%s", url, accountID))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned status %s", resp.Status)
	}

	var result struct {
		Accounts []struct {
			Account string `json:"account"`
			Balance uint64 `json:"balance"`
		} `json:"accounts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	for _, account := range result.Accounts {
		fmt.Printf("account: %s balance: %d\n", account.Account, account.Balance)
	}

	return nil
}
