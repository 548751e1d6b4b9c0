// This program provides a wallet cli for the blockchain.
package main

import "github.com/qledger/blockchain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
