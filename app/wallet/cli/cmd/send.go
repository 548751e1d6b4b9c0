package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/qledger/blockchain/foundation/ledger/database"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send value to an account",
	Long:  `Builds a transaction from the account's spendable outputs, signs it and submits it to the node.`,
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringP("to", "t", "", "Account receiving the value.")
	sendCmd.Flags().Uint64P("value", "v", 0, "Value to send.")
	sendCmd.Flags().Uint64P("fee", "f", 1, "Fee offered to the miner.")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := getPrivateKey(cmd)
	if err != nil {
		return err
	}
	fromID := database.PublicKeyToAccountID(privateKey.PublicKey)

	url, err := getURL(cmd)
	if err != nil {
		return err
	}

	toStr, err := cmd.Flags().GetString("to")
	if err != nil {
		return err
	}
	toID, err := database.ToAccountID(toStr)
	if err != nil {
		return err
	}

	value, err := cmd.Flags().GetUint64("value")
	if err != nil {
		return err
	}
	if value == 0 {
		return fmt.Errorf("value must be greater than zero")
	}

	fee, err := cmd.Flags().GetUint64("fee")
	if err != nil {
		return err
	}

	// Ask the node which outputs this account can spend.
	utxos, err := queryUTXOs(url, fromID)
	if err != nil {
		return err
	}

	// Select the largest outputs first until the target is covered. This
	// keeps the input count small.
	sort.Slice(utxos, func(i, j int) bool {
		return utxos[i].Amount > utxos[j].Amount
	})

	target := value + fee
	var inputs []database.TxIn
	var inputSum uint64
	for _, utxo := range utxos {
		if inputSum >= target {
			break
		}
		inputs = append(inputs, database.TxIn{TxID: utxo.TxID, Index: utxo.Index})
		inputSum += utxo.Amount
	}

	if inputSum < target {
		return fmt.Errorf("insufficient funds: have %d, need %d", inputSum, target)
	}

	// The fee is the untransferred difference, so only mint a change output
	// for what should come back.
	outputs := []database.TxOut{{OwnerID: toID, Amount: value}}
	if change := inputSum - target; change > 0 {
		outputs = append(outputs, database.TxOut{OwnerID: fromID, Amount: change})
	}

	tx, err := database.NewTx(inputs, outputs)
	if err != nil {
		return err
	}

	// Every input is unlocked with the same key in this wallet.
	for i := range tx.Inputs {
		if err := tx.SignInput(i, privateKey); err != nil {
			return err
		}
	}

	// Submit the signed transaction to the node.
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned status %s", resp.Status)
	}

	fmt.Println("transaction submitted:", tx.TxID())

	return nil
}
