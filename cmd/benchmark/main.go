package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	username    string
	password    string
	fromAccount int64
	toAccount   int64
	currency    string
	amount      string
)

// Counters
var (
	totalRequests uint64
	successOK     uint64 // Completed transfers (including idempotent replays)
	failFunds     uint64 // Insufficient funds / validation rejects
	failConflict  uint64 // Concurrency conflicts
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&username, "username", "user1", "Login username")
	flag.StringVar(&password, "password", "securepassword123", "Login password")
	flag.Int64Var(&fromAccount, "from", 1, "Sender account id (must belong to the user)")
	flag.Int64Var(&toAccount, "to", 2, "Receiver account id")
	flag.StringVar(&currency, "currency", "USD", "Transfer currency")
	flag.StringVar(&amount, "amount", "0.01", "Transfer amount")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark | Workers: %d | Duration: %s | %d -> %d %s %s",
		concurrency, duration, fromAccount, toAccount, amount, currency)

	token, err := login()
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, token, i)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func login() (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(targetURL+"/login", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func worker(wg *sync.WaitGroup, start time.Time, token string, id int) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		payload := map[string]interface{}{
			"sender_id":   fromAccount,
			"receiver_id": toAccount,
			"amount":      amount,
			"currency":    currency,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/send", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", fmt.Sprintf("bench-%d-%d", id, time.Now().UnixNano()))

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&successOK, 1)
		case http.StatusBadRequest:
			atomic.AddUint64(&failFunds, 1)
		case http.StatusConflict:
			atomic.AddUint64(&failConflict, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&successOK)
	funds := atomic.LoadUint64(&failFunds)
	conflicts := atomic.LoadUint64(&failConflict)
	fErr := atomic.LoadUint64(&failOther)

	results := map[string]interface{}{
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    float64(total) / d.Seconds(),
		"completed":         ok,
		"rejected_funds":    funds,
		"conflicts":         conflicts,
		"errors":            fErr,
		"conflict_rate_pct": float64(conflicts) / float64(total) * 100,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
