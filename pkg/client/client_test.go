package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testAddress = "0x1111111111111111111111111111111111111111"

func TestClient_ListQuests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/quests" {
			t.Errorf("Expected path /api/v1/quests, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "DeFi" {
			t.Errorf("Expected category DeFi, got %q", got)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"id": "15", "title": "Swap on Velodrome", "xp": 300}},
			"count": 1,
		})
	}))
	defer server.Close()

	quests, err := New(server.URL).ListQuests(context.Background(), "DeFi")
	if err != nil {
		t.Fatalf("ListQuests() error = %v", err)
	}
	if len(quests) != 1 || quests[0].ID != "15" || quests[0].XP != 300 {
		t.Errorf("ListQuests() = %+v", quests)
	}
}

func TestClient_GetQuestNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "Quest not found"},
		})
	}))
	defer server.Close()

	_, err := New(server.URL).GetQuest(context.Background(), "99")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetQuest() error = %v, want *APIError", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.Status != http.StatusNotFound {
		t.Errorf("GetQuest() error = %+v", apiErr)
	}
}

func TestClient_VerifyQuest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/quests/2/verify" {
			t.Errorf("Expected path /api/v1/quests/2/verify, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", ct)
		}

		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["address"] != testAddress {
			t.Errorf("Expected address %s, got %s", testAddress, body["address"])
		}

		json.NewEncoder(w).Encode(map[string]any{"success": true, "xp": 500, "message": "Verified!", "tier": "direct"})
	}))
	defer server.Close()

	res, err := New(server.URL).VerifyQuest(context.Background(), "2", testAddress)
	if err != nil {
		t.Fatalf("VerifyQuest() error = %v", err)
	}
	if !res.Success || res.XP != 500 || res.Tier != "direct" {
		t.Errorf("VerifyQuest() = %+v", res)
	}
}

func TestClient_VerifyQuestFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "No matching transaction found", "tier": "none"})
	}))
	defer server.Close()

	res, err := New(server.URL).VerifyQuest(context.Background(), "2", testAddress)
	if err != nil {
		t.Fatalf("VerifyQuest() error = %v, want a failed result", err)
	}
	if res.Success || res.Error != "No matching transaction found" {
		t.Errorf("VerifyQuest() = %+v", res)
	}
}

func TestClient_VerifyQuestAlreadyCompleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "ALREADY_COMPLETED", "message": "Quest already completed"},
		})
	}))
	defer server.Close()

	_, err := New(server.URL).VerifyQuest(context.Background(), "2", testAddress)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "ALREADY_COMPLETED" {
		t.Errorf("VerifyQuest() error = %v, want ALREADY_COMPLETED", err)
	}
}

func TestClient_VerifyStep(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/quests/10/steps/verify" {
			t.Errorf("Expected path /api/v1/quests/10/steps/verify, got %s", r.URL.Path)
		}
		var body struct {
			StepIndex *int `json:"stepIndex"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.StepIndex == nil || *body.StepIndex != 0 {
			t.Errorf("Expected stepIndex 0 to be sent")
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "xpAwarded": 333})
	}))
	defer server.Close()

	res, err := New(server.URL).VerifyStep(context.Background(), "10", 0, testAddress)
	if err != nil {
		t.Fatalf("VerifyStep() error = %v", err)
	}
	if res.XPAwarded != 333 {
		t.Errorf("VerifyStep().XPAwarded = %d, want 333", res.XPAwarded)
	}
}

func TestClient_ProfileAndLeaderboard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/" + testAddress:
			json.NewEncoder(w).Encode(map[string]any{
				"address":         testAddress,
				"completedQuests": []string{"2"},
				"xp":              500,
				"milestones":      map[string]any{"achieved": []any{}, "next": map[string]any{"id": "explorer", "xpRequired": 500}, "progress": 0},
			})
		case "/api/v1/leaderboard":
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("Expected limit 5, got %q", got)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data":  []map[string]any{{"rank": 1, "address": testAddress, "xp": 500, "completions": 1}},
				"count": 1,
			})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := New(server.URL)

	profile, err := c.Profile(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.XP != 500 || profile.Milestones.Next == nil || profile.Milestones.Next.ID != "explorer" {
		t.Errorf("Profile() = %+v", profile)
	}

	board, err := c.Leaderboard(context.Background(), 5)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(board) != 1 || board[0].Rank != 1 {
		t.Errorf("Leaderboard() = %+v", board)
	}
}

func TestClient_Sync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "syncedCount": 3, "newCompletions": []string{"2"}})
	}))
	defer server.Close()

	res, err := New(server.URL).Sync(context.Background(), testAddress)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.SyncedCount != 3 || len(res.NewCompletions) != 1 {
		t.Errorf("Sync() = %+v", res)
	}
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	_, err := New(server.URL).VerifyQuest(context.Background(), "2", testAddress)
	if err == nil {
		t.Fatal("VerifyQuest() expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("VerifyQuest() error = %v, want plain HTTP error", err)
	}
}

func TestClient_WithHTTPClient(t *testing.T) {
	custom := &http.Client{}
	c := New("http://localhost", WithHTTPClient(custom))
	if c.httpClient != custom {
		t.Error("WithHTTPClient() did not set the client")
	}
}
