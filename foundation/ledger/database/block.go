package database

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/qledger/blockchain/foundation/ledger/merkle"
	"github.com/qledger/blockchain/foundation/ledger/signature"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`          // Block number in the chain.
	PrevBlockHash string    `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64    `json:"timestamp"`       // Time the block was mined.
	BeneficiaryID AccountID `json:"beneficiary"`     // The account receiving the mining reward and fees.
	Difficulty    uint16    `json:"difficulty"`      // Number of leading zero hex symbols needed to solve the hash.
	Nonce         uint64    `json:"nonce"`           // Value identified to solve the hash.
	TransRoot     string    `json:"trans_root"`      // Merkle tree root hash for the transactions in this block.
}

// Work returns the amount of work this block represents. Each additional
// difficulty level multiplies the expected hash attempts by 16.
func (h BlockHeader) Work() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(4*h.Difficulty))
}

// Block represents a group of transactions bundled together.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[Tx]
}

// Hash returns the unique hash for the block by hashing the header. The
// merkle root folds every transaction into this hash.
func (b Block) Hash() string {
	if b.Header.Number == 0 {
		return signature.ZeroHash
	}

	return signature.Hash(b.Header)
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	BeneficiaryID AccountID
	Difficulty    uint16
	PrevBlock     Block
	Trans         []Tx
	EvHandler     func(v string, args ...any)
}

// POW constructs a new block and performs the work to find a nonce that
// solves the cryptographic puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {

	// When mining the first block, the previous block's hash is the zero
	// hash by construction.
	prevBlockHash := args.PrevBlock.Hash()

	// Construct a merkle tree from the transactions for this block. The root
	// of this tree will be part of the block to be mined.
	tree, err := merkle.NewTree(args.Trans)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Header: BlockHeader{
			Number:        args.PrevBlock.Header.Number + 1,
			PrevBlockHash: prevBlockHash,
			TimeStamp:     uint64(time.Now().UTC().UnixMilli()),
			BeneficiaryID: args.BeneficiaryID,
			Difficulty:    args.Difficulty,
			TransRoot:     tree.RootHex(),
		},
		Trans: tree,
	}

	if err := b.performPOW(ctx, args.EvHandler); err != nil {
		return Block{}, err
	}

	return b, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started")
	defer ev("database: PerformPOW: MINING: completed")

	for _, tx := range b.Trans.Values() {
		ev("database: PerformPOW: MINING: tx[%s]", tx.TxID())
	}

	// Choose a random starting point for the nonce. After this, the nonce
	// will be incremented by 1 until a solution is found.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return ctx.Err()
	}
	b.Header.Nonce = nBig.Uint64()

	ev("database: PerformPOW: MINING: running")

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		// Hash the block and check if we have solved the puzzle.
		hash := b.Hash()
		if !isHashSolved(b.Header.Difficulty, hash) {
			b.Header.Nonce++
			continue
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// isHashSolved checks the hash to make sure it complies with the POW rules.
// The difficulty is the number of leading zero symbols the hex form of the
// hash must carry.
func isHashSolved(difficulty uint16, hash string) bool {
	h := strings.TrimPrefix(hash, "0x")
	if len(h) != 64 {
		return false
	}

	match := strings.Repeat("0", int(difficulty))
	return strings.HasPrefix(h, match)
}

// =============================================================================

// ValidateBlock validates that a block properly extends the specified
// previous block. It does not look at the transactions, that is the
// database's job during apply.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: chain is not forked", b.Header.Number)

	// The node who sent this block has a chain that is at least two blocks
	// ahead of ours. The chains have diverged and this block can't be
	// trusted until the chains are reconciled.
	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number >= (nextNumber + 2) {
		return ErrChainForked
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block difficulty is the same or greater than previous block difficulty", b.Header.Number)

	if b.Header.Difficulty < previousBlock.Header.Difficulty {
		return fmt.Errorf("block difficulty is less than previous block difficulty, parent %d, block %d",
			previousBlock.Header.Difficulty, b.Header.Difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	hash := b.Hash()
	if !isHashSolved(b.Header.Difficulty, hash) {
		return fmt.Errorf("hash %s: %w", hash, ErrBadProofOfWork)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	if b.Header.Number != nextNumber {
		return fmt.Errorf("block number %d, expected %d: %w", b.Header.Number, nextNumber, ErrBadLinkage)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: previous block hash matches", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return fmt.Errorf("previous block hash %s, expected %s: %w", b.Header.PrevBlockHash, previousBlock.Hash(), ErrBadLinkage)
	}

	if previousBlock.Header.TimeStamp > 0 {
		evHandler("database: ValidateBlock: validate: blk[%d]: check: block timestamp is greater than previous block timestamp", b.Header.Number)

		if b.Header.TimeStamp <= previousBlock.Header.TimeStamp {
			return fmt.Errorf("block timestamp %d not after previous block timestamp %d", b.Header.TimeStamp, previousBlock.Header.TimeStamp)
		}
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: merkle root matches transactions", b.Header.Number)

	if b.Trans == nil || len(b.Trans.Values()) == 0 {
		return fmt.Errorf("block %d has no transactions", b.Header.Number)
	}

	if b.Header.TransRoot != b.Trans.RootHex() {
		return fmt.Errorf("merkle root %s, expected %s", b.Trans.RootHex(), b.Header.TransRoot)
	}

	return nil
}

// =============================================================================

// BlockData represents what can be serialized to disk and over the network.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []Tx        `json:"trans"`
}

// NewBlockData constructs block data from a block.
func NewBlockData(block Block) BlockData {
	blockData := BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Trans.Values(),
	}

	return blockData
}

// ToBlock converts a storage block into a database block.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header: blockData.Header,
		Trans:  tree,
	}

	return block, nil
}
