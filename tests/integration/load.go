package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const (
	baseURL         = "http://localhost:8080"
	bankName        = "loadbank"
	withdrawalLimit = 2000       // Ceiling for unverified clients
	numClients      = 50         // Number of clients to create
	numTransactions = 10000      // Total number of transactions
	maxConcurrency  = 200        // Maximum number of concurrent requests
	initialDeposit  = 10000      // Initial deposit into each debit account
	maxAmount       = 3000       // Maximum transaction amount
	successColor    = "\033[32m" // Green
	errorColor      = "\033[31m" // Red
	infoColor       = "\033[34m" // Blue
	resetColor      = "\033[0m"  // Reset color
)

type Client struct {
	Token  string
	Debit  string
	Credit string
}

type Account struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Balance int64  `json:"balance"`
}

type Operation struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

type outcome int

const (
	committed outcome = iota
	refused
	failed
)

func main() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	fmt.Printf("%sstarting a heavy load test with %d clients and %d transactions%s\n",
		infoColor, numClients, numTransactions, resetColor)

	if err := createBank(); err != nil {
		fmt.Printf("%s%v%s\n", errorColor, err, resetColor)
		return
	}

	// Create clients with a debit and a credit account each
	clients := createClients(numClients)
	fmt.Printf("%sCreated %d clients%s\n", successColor, len(clients), resetColor)
	if len(clients) < 2 {
		return
	}

	// Create semaphore for limiting concurrency
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	// Track performance
	startTime := time.Now()
	counts := map[outcome]int{}
	var countsMutex sync.Mutex

	// Launch transactions
	fmt.Printf("%slaunching %d transactions with max concurrency of %d%s\n",
		infoColor, numTransactions, maxConcurrency, resetColor)

	for i := 0; i < numTransactions; i++ {
		// rng is not safe for concurrent use
		client := clients[rng.Intn(len(clients))]
		receiver := clients[rng.Intn(len(clients))]
		kind := rng.Intn(3)
		amount := int64(1 + rng.Intn(maxAmount))

		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore

		go func(txNum int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore

			var (
				op     string
				result outcome
				err    error
			)
			switch kind {
			case 0:
				op = "deposit"
				result, err = post("/client/deposits", client.Token, map[string]interface{}{
					"account_id": client.Debit, "amount": amount,
				})
			case 1:
				op = "withdrawal"
				result, err = post("/client/withdrawals", client.Token, map[string]interface{}{
					"account_id": client.Credit, "amount": amount,
				})
			default:
				op = "transfer"
				result, err = post("/client/transfers", client.Token, map[string]interface{}{
					"from_account_id": client.Debit, "to_account_id": receiver.Debit, "amount": amount,
				})
			}

			countsMutex.Lock()
			counts[result]++
			countsMutex.Unlock()

			if err != nil && txNum%100 == 0 { // Only log some failures to avoid overwhelming output
				fmt.Printf("%sTransaction %d (%s of %d) failed: %v%s\n", errorColor, txNum, op, amount, err, resetColor)
			}
		}(i)
	}

	// Wait for all transactions to complete
	wg.Wait()
	duration := time.Since(startTime)

	fmt.Printf("\n%s=== heavy load Test Results ===%s\n", infoColor, resetColor)
	fmt.Printf("Total number of transactions: %d\n", numTransactions)
	fmt.Printf("Committed: %s%d (%.1f%%)%s\n",
		successColor, counts[committed], percent(counts[committed]), resetColor)
	fmt.Printf("Refused: %d (%.1f%%)\n", counts[refused], percent(counts[refused]))
	fmt.Printf("Failed: %s%d (%.1f%%)%s\n",
		errorColor, counts[failed], percent(counts[failed]), resetColor)
	fmt.Printf("Duration: %.2f seconds\n", duration.Seconds())
	fmt.Printf("Throughput: %.2f transactions/second\n", float64(numTransactions)/duration.Seconds())

	// Money only moves between accounts, so the balances of every account sum to zero
	fmt.Printf("\n%sChecking final account balances...%s\n", infoColor, resetColor)
	checkConservation(clients)
}

func percent(n int) float64 {
	return float64(n) / float64(numTransactions) * 100
}

// request sends a JSON request and decodes a JSON response into out
func request(method, path, token string, body, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, fmt.Errorf("failed to marshal JSON: %v", err)
		}
	}

	req, err := http.NewRequest(method, baseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Client-Token", token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("status: %d, body: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode, nil
}

// post runs a money operation
func post(path, token string, body interface{}) (outcome, error) {
	var op Operation
	status, err := request(http.MethodPost, path, token, body, &op)
	switch {
	case err == nil:
		return committed, nil
	case status == http.StatusUnprocessableEntity:
		return refused, nil
	default:
		return failed, err
	}
}

func createBank() error {
	status, err := request(http.MethodPost, "/admin/banks", "", map[string]interface{}{
		"name": bankName, "unauthorized_withdrawal_limit": withdrawalLimit,
	}, nil)
	if err != nil && status != http.StatusConflict {
		return fmt.Errorf("failed to create bank: %v", err)
	}
	return nil
}

// createClients registers clients, every other one verified, and funds their debit accounts
func createClients(count int) []Client {
	clients := make([]Client, 0, count)

	for i := 0; i < count; i++ {
		body := map[string]interface{}{"bank": bankName, "name": "Load", "surname": fmt.Sprintf("Client%d", i)}
		if i%2 == 0 {
			body["passport"] = fmt.Sprintf("P%06d", i)
			body["address"] = "Load street"
		}

		var created struct {
			ClientToken string `json:"client_token"`
		}
		if _, err := request(http.MethodPost, "/admin/clients", "", body, &created); err != nil {
			fmt.Printf("%sFailed to create client: %v%s\n", errorColor, err, resetColor)
			continue
		}
		client := Client{Token: created.ClientToken}

		var debit, credit Account
		if _, err := request(http.MethodPost, "/client/accounts", client.Token,
			map[string]interface{}{"account_type": "DebitAccount"}, &debit); err != nil {
			fmt.Printf("%sFailed to create debit account: %v%s\n", errorColor, err, resetColor)
			continue
		}
		if _, err := request(http.MethodPost, "/client/accounts", client.Token, map[string]interface{}{
			"account_type": "CreditAccount",
			"kwargs":       map[string]interface{}{"credit_limit": 5000, "interest_rate": "0.12"},
		}, &credit); err != nil {
			fmt.Printf("%sFailed to create credit account: %v%s\n", errorColor, err, resetColor)
			continue
		}
		client.Debit, client.Credit = debit.ID, credit.ID

		if _, err := post("/client/deposits", client.Token, map[string]interface{}{
			"account_id": client.Debit, "amount": initialDeposit,
		}); err != nil {
			fmt.Printf("%sFailed to fund client: %v%s\n", errorColor, err, resetColor)
			continue
		}

		clients = append(clients, client)
		if i%10 == 0 || i == count-1 {
			fmt.Printf("%screated client %d/%d with debit account %s%s\n",
				successColor, i+1, count, client.Debit, resetColor)
		}
	}

	return clients
}

// checkConservation sums the balances of every account, cash accounts included
func checkConservation(clients []Client) {
	var total int64
	for _, client := range clients {
		var accounts []Account
		if _, err := request(http.MethodGet, "/client/accounts", client.Token, nil, &accounts); err != nil {
			fmt.Printf("%sError retrieving accounts: %v%s\n", errorColor, err, resetColor)
			return
		}
		for _, account := range accounts {
			total += account.Balance
		}
	}

	if total != 0 {
		fmt.Printf("%sBalances sum to %d, expected 0%s\n", errorColor, total, resetColor)
		return
	}
	fmt.Printf("%sBalances of %d clients sum to 0%s\n", successColor, len(clients), resetColor)
}
