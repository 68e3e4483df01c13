//go:build ignore

// register-wallet.go - Register a wallet through the API and follow its
// initial sync to completion.
//
// Usage:
//   go run scripts/register-wallet.go -api http://localhost:8080 \
//     -secret "$JWT_SECRET" -user "user-123" \
//     -address "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" \
//     -network ethereum -name "main"
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	apiURL  = flag.String("api", "http://localhost:8080", "API server base URL")
	secret  = flag.String("secret", "", "JWT signing secret (matches auth.jwt_secret)")
	issuer  = flag.String("issuer", "", "JWT issuer claim (matches auth.issuer, empty to skip)")
	userID  = flag.String("user", "", "User id to register the wallet under")
	address = flag.String("address", "", "Wallet address (0x hex)")
	network = flag.String("network", "ethereum", "Network name")
	name    = flag.String("name", "", "Optional wallet display name")
)

func main() {
	flag.Parse()

	if *secret == "" || *userID == "" || *address == "" {
		fmt.Println("Error: -secret, -user and -address are required")
		os.Exit(1)
	}

	token := mustSignToken(*secret, *issuer, *userID)

	body, _ := json.Marshal(map[string]string{
		"address": *address,
		"network": *network,
		"name":    *name,
	})

	var resp struct {
		Wallet struct {
			ID      string `json:"id"`
			Address string `json:"address"`
		} `json:"wallet"`
		Job *struct {
			JobID    string `json:"jobId"`
			Position int    `json:"position"`
		} `json:"job"`
	}
	status := doJSON(http.MethodPost, *apiURL+"/api/v1/wallets", token, body, &resp)
	if status != http.StatusCreated {
		fmt.Printf("registration failed with status %d\n", status)
		os.Exit(1)
	}

	fmt.Printf("wallet %s registered (%s)\n", resp.Wallet.ID, resp.Wallet.Address)
	if resp.Job == nil {
		fmt.Println("no sync job was queued; trigger one manually")
		return
	}
	fmt.Printf("sync job %s queued at position %d\n", resp.Job.JobID, resp.Job.Position)

	// Poll the job until it settles.
	for {
		time.Sleep(2 * time.Second)

		var job struct {
			Status   string `json:"status"`
			State    string `json:"state"`
			Progress int    `json:"progress"`
			Error    string `json:"error"`
		}
		status := doJSON(http.MethodGet, *apiURL+"/api/v1/jobs/"+resp.Job.JobID, token, nil, &job)
		if status == http.StatusNotFound {
			fmt.Println("job record expired before completion")
			return
		}

		fmt.Printf("  %s %3d%% (%s)\n", job.State, job.Progress, job.Status)
		switch job.Status {
		case "completed":
			return
		case "failed":
			fmt.Printf("sync failed: %s\n", job.Error)
			os.Exit(1)
		}
	}
}

func mustSignToken(secret, issuer, userID string) string {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("failed to sign token: %v\n", err)
		os.Exit(1)
	}
	return token
}

func doJSON(method, url, token string, body []byte, out any) int {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		fmt.Printf("bad request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fmt.Printf("unexpected response (%d): %s\n", resp.StatusCode, raw)
			os.Exit(1)
		}
	}
	return resp.StatusCode
}
