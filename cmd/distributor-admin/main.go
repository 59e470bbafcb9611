package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	flag "github.com/spf13/pflag"

	"github.com/meridianxyz/distributor/pkg/merkle"
	"github.com/meridianxyz/distributor/pkg/server"
	"github.com/meridianxyz/distributor/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	apiFlag := flag.String("api", "http://localhost:8080", "distributor API base URL (or set DISTRIBUTOR_API env var)")
	keypairFlag := flag.String("keypair", "", "path to a solana keygen JSON keypair used to sign requests")

	// Tree tooling
	rewardsFlag := flag.String("rewards", "", "rewards CSV file: one 'claimant,total_amount' line per recipient")
	rootFlag := flag.Bool("root", false, "print the merkle root of the rewards file")
	proofFlag := flag.Bool("proof", false, "print the merkle proof for --claimant from the rewards file")
	claimantFlag := flag.String("claimant", "", "claimant public key (base58)")

	// Distribution operations
	initializeFlag := flag.Bool("initialize", false, "initialize a new distribution from the rewards file")
	mintFlag := flag.String("mint", "", "token mint public key for --initialize")
	fundingFlag := flag.Uint64("funding", 0, "initial vault funding for --initialize")
	updateRootFlag := flag.Bool("update-root", false, "rotate the distribution root to the rewards file's root")
	setAdminFlag := flag.Bool("set-admin", false, "transfer admin authority to --new-admin")
	newAdminFlag := flag.String("new-admin", "", "new admin public key (base58)")
	shutdownFlag := flag.Bool("shutdown", false, "shut the distribution down and sweep the vault")
	statusFlag := flag.Bool("status", false, "print distribution status")
	claimFlag := flag.Bool("claim", false, "claim the signer's entitlement from the rewards file")
	idFlag := flag.String("id", "", "distribution ID")

	flag.Parse()

	if envAPI := os.Getenv("DISTRIBUTOR_API"); envAPI != "" {
		*apiFlag = envAPI
	}

	log := logger.New(*verboseFlag)

	var leaves []merkle.Leaf
	if *rewardsFlag != "" {
		var err error
		leaves, err = loadRewards(*rewardsFlag)
		if err != nil {
			return err
		}
		log.Debug("admin: loaded rewards", "file", *rewardsFlag, "recipients", len(leaves))
	}

	client := &apiClient{base: *apiFlag, http: &http.Client{Timeout: 30 * time.Second}}
	if *keypairFlag != "" {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(*keypairFlag)
		if err != nil {
			return fmt.Errorf("failed to load keypair: %w", err)
		}
		client.key = key
	}

	switch {
	case *rootFlag:
		tree, err := buildTree(leaves)
		if err != nil {
			return err
		}
		fmt.Println(tree.Root())
		return nil

	case *proofFlag:
		if *claimantFlag == "" {
			return fmt.Errorf("--claimant is required for --proof")
		}
		claimant, err := solana.PublicKeyFromBase58(*claimantFlag)
		if err != nil {
			return fmt.Errorf("failed to parse claimant: %w", err)
		}
		tree, err := buildTree(leaves)
		if err != nil {
			return err
		}
		proof, err := tree.Proof(claimant)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"root": tree.Root(), "proof": proof})

	case *initializeFlag:
		if *mintFlag == "" {
			return fmt.Errorf("--mint is required for --initialize")
		}
		mint, err := solana.PublicKeyFromBase58(*mintFlag)
		if err != nil {
			return fmt.Errorf("failed to parse mint: %w", err)
		}
		tree, err := buildTree(leaves)
		if err != nil {
			return err
		}
		return client.post("/api/distributions", map[string]any{
			"mint":    mint,
			"root":    tree.Root(),
			"funding": *fundingFlag,
		})

	case *updateRootFlag:
		if *idFlag == "" {
			return fmt.Errorf("--id is required for --update-root")
		}
		tree, err := buildTree(leaves)
		if err != nil {
			return err
		}
		return client.post("/api/distributions/"+*idFlag+"/root", map[string]any{"new_root": tree.Root()})

	case *setAdminFlag:
		if *idFlag == "" || *newAdminFlag == "" {
			return fmt.Errorf("--id and --new-admin are required for --set-admin")
		}
		newAdmin, err := solana.PublicKeyFromBase58(*newAdminFlag)
		if err != nil {
			return fmt.Errorf("failed to parse new admin: %w", err)
		}
		return client.post("/api/distributions/"+*idFlag+"/admin", map[string]any{"new_admin": newAdmin})

	case *shutdownFlag:
		if *idFlag == "" {
			return fmt.Errorf("--id is required for --shutdown")
		}
		return client.post("/api/distributions/"+*idFlag+"/shutdown", map[string]any{})

	case *claimFlag:
		if *idFlag == "" {
			return fmt.Errorf("--id is required for --claim")
		}
		if client.key == nil {
			return fmt.Errorf("--keypair is required for --claim")
		}
		tree, err := buildTree(leaves)
		if err != nil {
			return err
		}
		claimant := client.key.PublicKey()
		proof, err := tree.Proof(claimant)
		if err != nil {
			return err
		}
		var total uint64
		for _, leaf := range leaves {
			if leaf.Claimant == claimant {
				total = leaf.TotalAmount
			}
		}
		return client.post("/api/distributions/"+*idFlag+"/claims", map[string]any{
			"total_amount": total,
			"proof":        proof,
		})

	case *statusFlag:
		if *idFlag == "" {
			return fmt.Errorf("--id is required for --status")
		}
		path := "/api/distributions/" + *idFlag
		if *claimantFlag != "" {
			path += "?claimant=" + *claimantFlag
		}
		return client.get(path)
	}

	flag.Usage()
	return fmt.Errorf("no command given")
}

func buildTree(leaves []merkle.Leaf) (*merkle.Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("--rewards file with at least one entry is required")
	}
	return merkle.NewTree(leaves)
}

// loadRewards parses a CSV of 'claimant,total_amount' rows into tree leaves.
func loadRewards(path string) ([]merkle.Leaf, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rewards file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse rewards file: %w", err)
	}

	leaves := make([]merkle.Leaf, 0, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("rewards row %d: expected 'claimant,total_amount', got %d fields", i+1, len(row))
		}
		claimant, err := solana.PublicKeyFromBase58(row[0])
		if err != nil {
			return nil, fmt.Errorf("rewards row %d: failed to parse claimant: %w", i+1, err)
		}
		amount, err := strconv.ParseUint(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("rewards row %d: failed to parse amount: %w", i+1, err)
		}
		leaves = append(leaves, merkle.Leaf{Claimant: claimant, TotalAmount: amount})
	}
	return leaves, nil
}

type apiClient struct {
	base string
	http *http.Client
	key  solana.PrivateKey
}

func (c *apiClient) post(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if c.key == nil {
		return fmt.Errorf("--keypair is required for signed operations")
	}

	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signer", c.key.PublicKey().String())

	signature, err := server.SignBody(c.key, payload)
	if err != nil {
		return err
	}
	req.Header.Set("X-Signature", signature)

	return c.do(req)
}

func (c *apiClient) get(path string) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

func (c *apiClient) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
	} else {
		fmt.Println(pretty.String())
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
