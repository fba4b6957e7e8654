package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hr-attendance-bot/internal/repository"
)

const defaultHRURL = "http://localhost:8080"

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	fmt.Println("🚀 HR Backend Check Script")
	fmt.Println("==========================")

	// Load .env file if exists
	godotenv.Load()

	url := strings.TrimRight(getEnv("HR_API_URL", defaultHRURL), "/")
	identifier := getEnv("HR_CHECK_ID", "")
	password := getEnv("HR_CHECK_PASSWORD", "")

	fmt.Printf("Connecting to: %s\n", url)

	if err := checkHealth(url); err != nil {
		fmt.Printf("❌ Cannot connect to HR backend: %v\n", err)
		fmt.Println("\nPlease check:")
		fmt.Println("1. Is the HR service running at HR_API_URL?")
		fmt.Printf("2. Check with: curl %s/api/health\n", url)
		os.Exit(1)
	}

	if identifier == "" || password == "" {
		fmt.Println("⚠️  HR_CHECK_ID / HR_CHECK_PASSWORD not set, skipping login check")
		fmt.Println("\nTo test login:")
		fmt.Println("  export HR_CHECK_ID=your_employee_id")
		fmt.Println("  export HR_CHECK_PASSWORD=your_password")
		return
	}

	if err := testAuth(url, identifier, password); err != nil {
		fmt.Printf("❌ Auth test failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n🎉 Backend check complete!")
}

func testAuth(baseURL, identifier, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := repository.NewHRRESTClient(baseURL, httpClient.Timeout)
	session, err := client.Login(ctx, identifier, password)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Authentication successful: user %s (%s)\n", session.UserID, session.Role)

	if session.Expired(time.Now()) {
		return fmt.Errorf("backend issued an already expired token")
	}

	today, err := client.ForSession(session).GetToday(ctx, session.UserID, time.Now())
	if err != nil {
		return fmt.Errorf("history lookup failed: %w", err)
	}
	if today == nil {
		fmt.Println("✅ History reachable, no record today")
	} else {
		fmt.Printf("✅ History reachable, today's record %d (%s)\n", today.ID, today.Status)
	}
	return nil
}

func checkHealth(baseURL string) error {
	resp, err := httpClient.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %s", resp.Status)
	}

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("✅ HR backend is running: %s\n", strings.TrimSpace(string(body)))
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
