package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/breakshot/backend/internal/config"
	"github.com/breakshot/backend/internal/game"
	"github.com/breakshot/backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type createResponse struct {
	Table game.TableInfo `json:"table"`
	Seats []SeatToken    `json:"seats"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *game.TableManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: "test-secret", MaxTables: 10}
	tm := game.NewTableManager(nil, nil, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	tm.Start(ctx)
	t.Cleanup(func() {
		tm.Shutdown(context.Background())
		cancel()
	})

	r := gin.New()
	r.POST("/aim", AimPreview(tm))
	r.POST("/tables", CreateTable(tm, cfg))
	r.GET("/tables/:id", GetTable(tm))
	seated := r.Group("/tables/:id", middleware.RequireSeat(cfg))
	seated.POST("/shot", TakeShot(tm))
	seated.POST("/reset", ResetTable(tm))
	seated.POST("/quit", QuitTable(tm, nil))
	return r, tm
}

func doJSON(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createTable(t *testing.T, r http.Handler, body gin.H) createResponse {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/tables", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var resp createResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if w.Header().Get("X-Table-ID") != resp.Table.ID {
		t.Errorf("X-Table-ID = %q, want %q", w.Header().Get("X-Table-ID"), resp.Table.ID)
	}
	return resp
}

func TestCreateTableSeats(t *testing.T) {
	r, _ := newTestRouter(t)

	training := createTable(t, r, gin.H{"player_id": "p1"})
	if training.Table.Mode != game.ModeTraining || len(training.Seats) != 1 {
		t.Errorf("training table = %+v with %d seats", training.Table, len(training.Seats))
	}

	mp := createTable(t, r, gin.H{"mode": "multiplayer", "player_id": "p1", "opponent_id": "p2"})
	if len(mp.Seats) != 2 || mp.Seats[0].Side != 1 || mp.Seats[1].Side != 2 {
		t.Fatalf("multiplayer seats = %+v", mp.Seats)
	}
	if mp.Seats[1].PlayerID != "p2" {
		t.Errorf("side 2 player = %q", mp.Seats[1].PlayerID)
	}

	if w := doJSON(r, http.MethodPost, "/tables", "", gin.H{"mode": "snooker"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/tables/tbl_missing", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing table status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/tables/"+mp.Table.ID, "", nil); w.Code != http.StatusOK {
		t.Errorf("get table status = %d", w.Code)
	}
}

func TestTakeShot(t *testing.T) {
	r, _ := newTestRouter(t)
	a := createTable(t, r, gin.H{"mode": "multiplayer", "player_id": "p1", "opponent_id": "p2"})
	b := createTable(t, r, gin.H{"player_id": "p3"})
	path := "/tables/" + a.Table.ID + "/shot"
	shot := gin.H{"angle": 0, "power": 15}

	if w := doJSON(r, http.MethodPost, path, b.Seats[0].Token, shot); w.Code != http.StatusForbidden {
		t.Errorf("foreign seat status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, path, a.Seats[0].Token, gin.H{"angle": 0}); w.Code != http.StatusBadRequest {
		t.Errorf("missing power status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, path, a.Seats[1].Token, shot); w.Code != http.StatusConflict {
		t.Errorf("out of turn status = %d", w.Code)
	}

	w := doJSON(r, http.MethodPost, path, a.Seats[0].Token, shot)
	if w.Code != http.StatusAccepted {
		t.Fatalf("shot status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Accepted   bool `json:"accepted"`
		ShotNumber int  `json:"shot_number"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Accepted || resp.ShotNumber != 1 {
		t.Errorf("shot response = %+v", resp)
	}
	if w := doJSON(r, http.MethodPost, path, a.Seats[0].Token, shot); w.Code != http.StatusConflict {
		t.Errorf("shot while balls move status = %d", w.Code)
	}
}

func TestResetAndQuit(t *testing.T) {
	r, tm := newTestRouter(t)
	mp := createTable(t, r, gin.H{"mode": "multiplayer", "player_id": "p1", "opponent_id": "p2"})
	training := createTable(t, r, gin.H{"player_id": "p3"})

	if w := doJSON(r, http.MethodPost, "/tables/"+mp.Table.ID+"/reset", mp.Seats[0].Token, nil); w.Code != http.StatusForbidden {
		t.Errorf("multiplayer reset status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/tables/"+training.Table.ID+"/reset", training.Seats[0].Token, nil); w.Code != http.StatusOK {
		t.Errorf("training reset status = %d", w.Code)
	}

	if w := doJSON(r, http.MethodPost, "/tables/"+mp.Table.ID+"/quit", mp.Seats[1].Token, nil); w.Code != http.StatusOK {
		t.Fatalf("quit status = %d: %s", w.Code, w.Body.String())
	}
	if _, err := tm.Get(mp.Table.ID); err == nil {
		t.Error("table still live after quit")
	}
	if w := doJSON(r, http.MethodPost, "/tables/"+mp.Table.ID+"/quit", mp.Seats[0].Token, nil); w.Code != http.StatusNotFound {
		t.Errorf("second quit status = %d", w.Code)
	}
}

func TestAimPreviewHandler(t *testing.T) {
	r, _ := newTestRouter(t)
	balls := []game.Ball{
		{ID: game.CueBallID, Position: game.NewVec2(200, 250)},
		{ID: 5, Position: game.NewVec2(300, 250)},
	}

	w := doJSON(r, http.MethodPost, "/aim", "", gin.H{"balls": balls, "angle": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("aim status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Preview game.AimPreview `json:"preview"`
		Shot    *game.Shot      `json:"shot"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Preview.HasTarget || resp.Preview.TargetID != 5 || resp.Shot != nil {
		t.Errorf("aim response = %+v", resp)
	}

	drag := gin.H{"start": game.NewVec2(200, 250), "end": game.NewVec2(150, 250)}
	w = doJSON(r, http.MethodPost, "/aim", "", gin.H{"balls": balls, "drag": drag})
	resp.Shot = nil
	json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Shot == nil || resp.Shot.Power != 10 {
		t.Errorf("drag aim = %d %+v", w.Code, resp.Shot)
	}

	offBall := gin.H{"start": game.NewVec2(100, 100), "end": game.NewVec2(50, 100)}
	if w := doJSON(r, http.MethodPost, "/aim", "", gin.H{"balls": balls, "drag": offBall}); w.Code != http.StatusBadRequest {
		t.Errorf("drag off the cue ball status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodPost, "/aim", "", gin.H{"angle": 1}); w.Code != http.StatusBadRequest {
		t.Errorf("no balls status = %d", w.Code)
	}
}
