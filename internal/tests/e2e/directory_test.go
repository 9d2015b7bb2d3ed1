//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/pharmadir/apiserver/config"
	"github.com/pharmadir/apiserver/internal/db"
	"github.com/pharmadir/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestDirectoryLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	client := newCookieClient(t)

	if err := registerUser(t, client, baseURL, email, password); err != nil {
		t.Fatalf("register user: %v", err)
	}

	if err := loginExpectStatus(t, client, baseURL, email, "wrong-password", http.StatusUnauthorized); err != nil {
		t.Fatalf("login with bad password: %v", err)
	}
	if err := loginExpectStatus(t, client, baseURL, "ghost@example.com", password, http.StatusNotFound); err != nil {
		t.Fatalf("login with unknown email: %v", err)
	}
	if err := loginExpectStatus(t, client, baseURL, email, password, http.StatusOK); err != nil {
		t.Fatalf("login: %v", err)
	}

	me, err := getMe(t, client, baseURL)
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	if me.User.Email != email {
		t.Fatalf("unexpected identity email: %q", me.User.Email)
	}

	pharmacy, err := createPharmacy(t, client, baseURL)
	if err != nil {
		t.Fatalf("create pharmacy: %v", err)
	}
	if pharmacy.ID == 0 {
		t.Fatalf("expected pharmacy ID to be set")
	}

	listed, err := listPharmacies(t, client, baseURL)
	if err != nil {
		t.Fatalf("list pharmacies: %v", err)
	}
	if !containsPharmacy(listed, pharmacy.ID) {
		t.Fatalf("created pharmacy %d missing from listing", pharmacy.ID)
	}

	favorite, err := createFavorite(t, client, baseURL, pharmacy.ID)
	if err != nil {
		t.Fatalf("create favorite: %v", err)
	}

	favorites, err := listFavorites(t, client, baseURL)
	if err != nil {
		t.Fatalf("list favorites: %v", err)
	}
	if len(favorites) != 1 || favorites[0].PharmacyID != pharmacy.ID {
		t.Fatalf("unexpected favorites: %+v", favorites)
	}

	if err := deleteFavorite(t, client, baseURL, favorite.ID); err != nil {
		t.Fatalf("delete favorite: %v", err)
	}
	if err := expectFavoriteNotFound(t, client, baseURL, favorite.ID); err != nil {
		t.Fatalf("expected deleted favorite to be missing: %v", err)
	}

	if err := logout(t, client, baseURL); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := expectMeUnauthorized(t, client, baseURL); err != nil {
		t.Fatalf("expected /auth/me to fail after logout: %v", err)
	}
}

type userPayload struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type meResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          userPayload `json:"user"`
}

type pharmacyPayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

type pharmacyResponse struct {
	Message string          `json:"message"`
	Result  pharmacyPayload `json:"result"`
}

type favoritePayload struct {
	ID         int `json:"id"`
	UserID     int `json:"user_id"`
	PharmacyID int `json:"pharmacy_id"`
}

type favoriteResponse struct {
	Message string          `json:"message"`
	Result  favoritePayload `json:"result"`
}

// newCookieClient returns a client that carries the session cookie
// between requests, like a browser would.
func newCookieClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func postJSON(client *http.Client, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

func registerUser(t *testing.T, client *http.Client, baseURL, email, password string) error {
	t.Helper()

	resp, err := postJSON(client, baseURL+"/auth/register", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func loginExpectStatus(t *testing.T, client *http.Client, baseURL, email, password string, expected int) error {
	t.Helper()

	resp, err := postJSON(client, baseURL+"/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("login status %d, want %d: %s", resp.StatusCode, expected, strings.TrimSpace(string(msg)))
	}

	if expected == http.StatusOK {
		base, err := url.Parse(baseURL)
		if err != nil {
			return err
		}
		for _, cookie := range client.Jar.Cookies(base) {
			if cookie.Name == "access_token" && cookie.Value != "" {
				return nil
			}
		}
		return fmt.Errorf("access_token cookie not set after login")
	}
	return nil
}

func getMe(t *testing.T, client *http.Client, baseURL string) (meResponse, error) {
	t.Helper()

	resp, err := client.Get(baseURL + "/auth/me")
	if err != nil {
		return meResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return meResponse{}, fmt.Errorf("me status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed meResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return meResponse{}, err
	}
	if !parsed.Authenticated {
		return meResponse{}, fmt.Errorf("expected authenticated response")
	}
	return parsed, nil
}

func expectMeUnauthorized(t *testing.T, client *http.Client, baseURL string) error {
	t.Helper()

	resp, err := client.Get(baseURL + "/auth/me")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("me status %d, want 401: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func logout(t *testing.T, client *http.Client, baseURL string) error {
	t.Helper()

	resp, err := postJSON(client, baseURL+"/logout", map[string]string{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("logout status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func createPharmacy(t *testing.T, client *http.Client, baseURL string) (pharmacyPayload, error) {
	t.Helper()

	resp, err := postJSON(client, baseURL+"/pharmacy/", map[string]any{
		"name":     "Central Pharmacy",
		"address":  "1 Main St",
		"city":     "Lyon",
		"phone":    "0400000000",
		"schedule": "9-18",
		"guard":    true,
		"delivery": false,
		"status":   "open",
	})
	if err != nil {
		return pharmacyPayload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return pharmacyPayload{}, fmt.Errorf("create pharmacy status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed pharmacyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pharmacyPayload{}, err
	}
	return parsed.Result, nil
}

func listPharmacies(t *testing.T, client *http.Client, baseURL string) ([]pharmacyPayload, error) {
	t.Helper()

	resp, err := client.Get(baseURL + "/pharmacies")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list pharmacies status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed []pharmacyPayload
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func containsPharmacy(pharmacies []pharmacyPayload, id int) bool {
	for _, pharmacy := range pharmacies {
		if pharmacy.ID == id {
			return true
		}
	}
	return false
}

func createFavorite(t *testing.T, client *http.Client, baseURL string, pharmacyID int) (favoritePayload, error) {
	t.Helper()

	resp, err := postJSON(client, baseURL+"/favorite/", map[string]int{"pharmacy_id": pharmacyID})
	if err != nil {
		return favoritePayload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return favoritePayload{}, fmt.Errorf("create favorite status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed favoriteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return favoritePayload{}, err
	}
	return parsed.Result, nil
}

func listFavorites(t *testing.T, client *http.Client, baseURL string) ([]favoritePayload, error) {
	t.Helper()

	resp, err := client.Get(baseURL + "/favorites")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list favorites status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed []favoritePayload
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func deleteFavorite(t *testing.T, client *http.Client, baseURL string, id int) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/favorite/%d", baseURL, id), nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete favorite status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectFavoriteNotFound(t *testing.T, client *http.Client, baseURL string, id int) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/favorite/%d", baseURL, id), nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := db.PostgresURL(cfg)
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := db.PostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "pharmadir")
	_ = os.Setenv("DB_PASSWORD", "pharmadir")
	_ = os.Setenv("DB_NAME", "pharmadir")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "")
	_ = os.Setenv("BROKER_BACKEND", "")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg, nil)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
