package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/spf13/cobra"
)

var utxoCmd = &cobra.Command{
	Use:   "utxo",
	Short: "Print the spendable outputs for the account",
	Long:  `Queries the node for the individual unspent outputs owned by the account.`,
	RunE:  utxoRun,
}

func init() {
	rootCmd.AddCommand(utxoCmd)
}

func utxoRun(cmd *cobra.Command, args []string) error {
	privateKey, err := getPrivateKey(cmd)
	if err != nil {
		return err
	}
	accountID := database.PublicKeyToAccountID(privateKey.PublicKey)

	url, err := getURL(cmd)
	if err != nil {
		return err
	}

	utxos, err := queryUTXOs(url, accountID)
	if err != nil {
		return err
	}

	var total uint64
	for _, utxo := range utxos {
		fmt.Printf("output: %s:%d amount: %d\n", utxo.TxID, utxo.Index, utxo.Amount)
		total += utxo.Amount
	}
	fmt.Println("total:", total)

	return nil
}

// queryUTXOs asks the node for the spendable outputs of the account.
func queryUTXOs(url string, accountID database.AccountID) ([]database.UTXO, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/utxo/list/%s", url, accountID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node returned status %s", resp.Status)
	}

	var utxos []database.UTXO
	if err := json.NewDecoder(resp.Body).Decode(&utxos); err != nil {
		return nil, err
	}

	return utxos, nil
}
