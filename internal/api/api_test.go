package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

// call sends a request and decodes the JSON response into a map.
func call(t *testing.T, method, rawURL, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, rawURL, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func login(t *testing.T, ts *TestServer, username string) string {
	t.Helper()
	status, out := call(t, "POST", ts.URL+"/trylogin", "", map[string]string{
		"username": username, "password": TestPassword,
	})
	if status != http.StatusOK {
		t.Fatalf("login failed: %d %v", status, out)
	}
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func dataLen(out map[string]any) int {
	data, _ := out["data"].([]any)
	return len(data)
}

func TestLoginEndpoint(t *testing.T) {
	ts := NewTestServer(t)

	status, _ := call(t, "POST", ts.URL+"/trylogin", "", map[string]string{"username": "admin", "password": "wrong"})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	status, _ = call(t, "POST", ts.URL+"/trylogin", "", map[string]string{"username": "nobody", "password": "x"})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", status)
	}

	status, out := call(t, "POST", ts.URL+"/trylogin", "", map[string]string{"username": "admin", "password": TestPassword})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if out["level"] != float64(0) {
		t.Errorf("expected level 0, got %v", out["level"])
	}
}

func TestIsLoggedInTracksLatestToken(t *testing.T) {
	ts := NewTestServer(t)

	first := login(t, ts, "admin")
	_, out := call(t, "POST", ts.URL+"/isLoggedIn", "", map[string]string{"token": first})
	if out["output"] != "true" {
		t.Fatalf("expected fresh token to be logged in, got %v", out)
	}

	second := login(t, ts, "admin")
	_, out = call(t, "POST", ts.URL+"/isLoggedIn", "", map[string]string{"token": first})
	if out["output"] != "false" {
		t.Errorf("expected superseded token to be logged out, got %v", out)
	}
	_, out = call(t, "POST", ts.URL+"/isLoggedIn", "", map[string]string{"token": second})
	if out["output"] != "true" {
		t.Errorf("expected latest token to be logged in, got %v", out)
	}

	_, out = call(t, "POST", ts.URL+"/isLoggedIn", "", map[string]string{"token": "garbage"})
	if out["output"] != "false" {
		t.Errorf("expected garbage token to be rejected, got %v", out)
	}
}

func TestCheckTokenReturnsStoredLevel(t *testing.T) {
	ts := NewTestServer(t)
	ts.AddUser(t, "ana", 2)
	token := login(t, ts, "ana")

	adminToken := login(t, ts, "admin")
	status, _ := call(t, "POST", ts.URL+"/updateUser", adminToken, map[string]any{"username": "ana", "level": 1})
	if status != http.StatusOK {
		t.Fatalf("updating user: %d", status)
	}

	_, out := call(t, "POST", ts.URL+"/checkToken", "", map[string]string{"token": token})
	if out["level"] != float64(1) {
		t.Errorf("expected level 1 after promotion, got %v", out["level"])
	}
}

func TestItemsAPIFlow(t *testing.T) {
	ts := NewTestServer(t)
	token := login(t, ts, "admin")

	q := url.Values{
		"name": {"Screw"}, "size": {"M3x10"}, "is_metric": {"True"},
		"loc_shelf": {"A"}, "num": {"10"}, "threshold": {"2"}, "token": {token},
	}
	status, _ := call(t, "GET", ts.URL+"/addItem?"+q.Encode(), "", nil)
	if status != http.StatusOK {
		t.Fatalf("addItem: expected 200, got %d", status)
	}

	_, out := call(t, "GET", ts.URL+"/find?name=Screw&size=M3x10&is_metric=True", "", nil)
	if dataLen(out) != 1 {
		t.Fatalf("expected 1 exact match, got %v", out)
	}

	_, out = call(t, "GET", ts.URL+"/fuzzyfind?name=scr", "", nil)
	if dataLen(out) != 1 {
		t.Fatalf("expected 1 fuzzy match, got %v", out)
	}

	ident := "name=Screw&size=M3x10&is_metric=True&token=" + token
	call(t, "GET", ts.URL+"/increment?num=5&"+ident, "", nil)
	call(t, "GET", ts.URL+"/decrement?num=3&"+ident, "", nil)

	_, out = call(t, "GET", ts.URL+"/findAll", "", nil)
	items := out["data"].([]any)
	if got := items[0].(map[string]any)["count"]; got != float64(12) {
		t.Errorf("expected count 12, got %v", got)
	}

	upd := url.Values{
		"name": {"Screw"}, "size": {"M3x10"}, "is_metric": {"True"},
		"new_name": {"Bolt"}, "new_size": {"M3x10"}, "new_is_metric": {"True"},
		"count": {"7"}, "threshold": {"1"}, "token": {token},
	}
	status, _ = call(t, "GET", ts.URL+"/updateitem?"+upd.Encode(), "", nil)
	if status != http.StatusOK {
		t.Fatalf("updateitem: expected 200, got %d", status)
	}
	_, out = call(t, "GET", ts.URL+"/find?name=Bolt", "", nil)
	if dataLen(out) != 1 {
		t.Fatalf("expected renamed item, got %v", out)
	}

	status, _ = call(t, "GET", ts.URL+"/remove?name=Bolt&size=M3x10&is_metric=True&token="+token, "", nil)
	if status != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", status)
	}
	_, out = call(t, "GET", ts.URL+"/findAll", "", nil)
	if dataLen(out) != 0 {
		t.Errorf("expected empty inventory, got %v", out)
	}
}

func TestUnauthenticatedWrites(t *testing.T) {
	ts := NewTestServer(t)

	status, _ := call(t, "GET", ts.URL+"/addItem?name=Nut", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", status)
	}
	status, _ = call(t, "GET", ts.URL+"/addItem?name=Nut&token=forged", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for forged token, got %d", status)
	}
	status, _ = call(t, "GET", ts.URL+"/findAll", "", nil)
	if status != http.StatusOK {
		t.Errorf("expected reads to be public, got %d", status)
	}
}

func TestLevelBasedAccess(t *testing.T) {
	ts := NewTestServer(t)
	ts.AddUser(t, "viewer", 2)
	ts.AddUser(t, "editor", 1)
	viewer := ts.Token(t, "viewer", 2)
	editor := ts.Token(t, "editor", 1)

	status, _ := call(t, "GET", ts.URL+"/addItem?name=Nut&token="+viewer, "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected any valid token to add items, got %d", status)
	}

	status, _ = call(t, "GET", ts.URL+"/remove?name=Nut&token="+viewer, "", nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for level 2 removing, got %d", status)
	}
	status, _ = call(t, "GET", ts.URL+"/remove?name=Nut&token="+editor, "", nil)
	if status != http.StatusOK {
		t.Errorf("expected editor to remove, got %d", status)
	}

	status, _ = call(t, "GET", ts.URL+"/getUsers", editor, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for editor listing users, got %d", status)
	}
}

func TestUserManagement(t *testing.T) {
	ts := NewTestServer(t)
	token := login(t, ts, "admin")

	status, _ := call(t, "POST", ts.URL+"/register", token, map[string]any{
		"username": "ana", "password": "longenough", "level": 1,
	})
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", status)
	}
	status, _ = call(t, "POST", ts.URL+"/register", token, map[string]any{
		"username": "ana", "password": "longenough", "level": 1,
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", status)
	}
	status, _ = call(t, "POST", ts.URL+"/register", token, map[string]any{
		"username": "bo", "password": "short", "level": 1,
	})
	if status != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", status)
	}

	_, out := call(t, "GET", ts.URL+"/getUsers", token, nil)
	if users, _ := out["users"].([]any); len(users) != 2 {
		t.Fatalf("expected 2 users, got %v", out)
	}

	status, _ = call(t, "POST", ts.URL+"/updateUser", token, map[string]any{"username": "admin", "level": 2})
	if status != http.StatusForbidden {
		t.Errorf("updating admin: expected 403, got %d", status)
	}
	status, _ = call(t, "POST", ts.URL+"/deleteUser", token, map[string]any{"username": "admin"})
	if status != http.StatusForbidden {
		t.Errorf("deleting admin: expected 403, got %d", status)
	}

	status, _ = call(t, "POST", ts.URL+"/deleteUser", token, map[string]any{"username": "ana"})
	if status != http.StatusOK {
		t.Errorf("deleting ana: expected 200, got %d", status)
	}
	status, _ = call(t, "POST", ts.URL+"/deleteUser", token, map[string]any{"username": "ana"})
	if status != http.StatusNotFound {
		t.Errorf("deleting ana twice: expected 404, got %d", status)
	}
}

func TestElectricalAPIFlow(t *testing.T) {
	ts := NewTestServer(t)
	token := login(t, ts, "admin")

	for _, v := range []float64{1000, 4700, 10000, 100000} {
		status, out := call(t, "POST", ts.URL+"/electricalAddItem", "", map[string]any{
			"type": "passive", "subtype": "resistor", "value": v, "mounting_method": "SMD",
			"count": 10, "token": token,
		})
		if status != http.StatusOK {
			t.Fatalf("adding resistor: %d %v", status, out)
		}
	}
	status, _ := call(t, "POST", ts.URL+"/electricalAddItem", "", map[string]any{
		"type": "active", "name": "NE555", "part_id": 555, "count": 3, "token": token,
	})
	if status != http.StatusOK {
		t.Fatalf("adding active: %d", status)
	}

	_, out := call(t, "GET", ts.URL+"/electricalFuzzyPassive?item_type=resistor&value=6000&search_percent=0.7", "", nil)
	page := out["data"].(map[string]any)
	if page["length"] != float64(2) {
		t.Fatalf("expected 1000 excluded and 4700, 10000 in window, got %v", page)
	}
	if page["index"] != float64(0) {
		t.Errorf("expected 4700 closest at index 0, got %v", page["index"])
	}

	_, out = call(t, "GET", ts.URL+"/electricalFuzzyActive?name=ne55", "", nil)
	if dataLen(out) != 1 {
		t.Fatalf("expected fuzzy active match, got %v", out)
	}

	status, _ = call(t, "POST", ts.URL+"/electricalDecrement", "", map[string]any{
		"type": "active", "name": "NE555", "part_id": 555, "num": 2, "token": token,
	})
	if status != http.StatusOK {
		t.Fatalf("decrement: %d", status)
	}

	_, out = call(t, "POST", ts.URL+"/electricalFindBelowThreshold", "", map[string]any{
		"threshold": 5, "table": []string{"active"},
	})
	below, _ := out["items"].([]any)
	if len(below) != 1 {
		t.Fatalf("expected NE555 below threshold, got %v", out)
	}

	status, _ = call(t, "POST", ts.URL+"/electricalUpdateItem", "", map[string]any{
		"type": "active", "name": "NE555", "part_id": 555, "new_name": "LM555", "count": 1, "token": token,
	})
	if status != http.StatusOK {
		t.Fatalf("update: %d", status)
	}
	_, out = call(t, "GET", ts.URL+"/electricalFindActive?name=LM555&part_id=555", "", nil)
	if dataLen(out) != 1 {
		t.Fatalf("expected renamed active item, got %v", out)
	}

	status, _ = call(t, "POST", ts.URL+"/electricalRemoveActive", "", map[string]any{
		"item": map[string]any{"type": "active", "name": "LM555", "part_id": 555}, "token": token,
	})
	if status != http.StatusOK {
		t.Fatalf("remove active: %d", status)
	}
	status, _ = call(t, "POST", ts.URL+"/electricalRemovePassive", "", map[string]any{
		"item": map[string]any{"type": "active", "name": "x"}, "token": token,
	})
	if status != http.StatusBadRequest {
		t.Errorf("active item on passive endpoint: expected 400, got %d", status)
	}
}

func TestMultipliersRebuild(t *testing.T) {
	ts := NewTestServer(t)
	token := login(t, ts, "admin")

	for _, v := range []float64{10, 4700, 2200000} {
		call(t, "POST", ts.URL+"/electricalAddItem", "", map[string]any{
			"type": "passive", "subtype": "resistor", "value": v, "token": token,
		})
	}

	status, _ := call(t, "GET", ts.URL+"/updateMultipliers?token="+token, "", nil)
	if status != http.StatusOK {
		t.Fatalf("updateMultipliers: %d", status)
	}

	_, out := call(t, "GET", ts.URL+"/getMultipliers", "", nil)
	table, _ := out["multiplier"].([]any)
	if len(table) != 1 {
		t.Fatalf("expected one subtype, got %v", out)
	}
	labels := table[0].(map[string]any)["multiplier"].([]any)
	if len(labels) != 3 || labels[0] != "" || labels[1] != "k" || labels[2] != "M" {
		t.Errorf("expected labels [\"\" k M], got %v", labels)
	}
}

func TestTooltip(t *testing.T) {
	ts := NewTestServer(t)
	token := login(t, ts, "admin")

	status, _ := call(t, "POST", ts.URL+"/setElectricalTooltip", "", map[string]string{"tooltip": "Bin A is full", "token": token})
	if status != http.StatusOK {
		t.Fatalf("setElectricalTooltip: %d", status)
	}
	_, out := call(t, "GET", ts.URL+"/getElectricalTooltip", "", nil)
	if out["tooltip"] != "Bin A is full" {
		t.Errorf("unexpected tooltip %v", out["tooltip"])
	}
}

func TestFilesBackupAndRestore(t *testing.T) {
	ts := NewTestServer(t)
	token := login(t, ts, "admin")

	call(t, "GET", ts.URL+"/addItem?name=Washer&num=4&token="+token, "", nil)

	status, out := call(t, "GET", ts.URL+"/backupDatabase", token, nil)
	if status != http.StatusOK {
		t.Fatalf("backup: %d %v", status, out)
	}
	file, _ := out["file"].(string)
	if !strings.HasPrefix(file, "items-") {
		t.Fatalf("unexpected backup name %q", file)
	}

	_, out = call(t, "GET", ts.URL+"/getFiles", token, nil)
	if files, _ := out["files"].([]any); len(files) != 1 || files[0] != file {
		t.Fatalf("expected backup listed, got %v", out)
	}
	_, out = call(t, "GET", ts.URL+"/getElectricalFiles", token, nil)
	if files, _ := out["files"].([]any); len(files) != 0 {
		t.Errorf("expected no electrical backups, got %v", out)
	}

	call(t, "GET", ts.URL+"/remove?name=Washer&token="+token, "", nil)
	status, _ = call(t, "GET", ts.URL+"/restoreDatabase?file="+file, token, nil)
	if status != http.StatusOK {
		t.Fatalf("restore: %d", status)
	}
	_, out = call(t, "GET", ts.URL+"/findAll", "", nil)
	if dataLen(out) != 1 {
		t.Fatalf("expected restored item, got %v", out)
	}

	status, _ = call(t, "GET", ts.URL+"/downloadFile?fileName=../secret.csv", token, nil)
	if status != http.StatusBadRequest {
		t.Errorf("traversal: expected 400, got %d", status)
	}

	ts.AddUser(t, "editor", 1)
	status, _ = call(t, "GET", ts.URL+"/getFiles", ts.Token(t, "editor", 1), nil)
	if status != http.StatusForbidden {
		t.Errorf("editor listing files: expected 403, got %d", status)
	}
}

func TestAppendUpload(t *testing.T) {
	ts := NewTestServer(t)
	token := login(t, ts, "admin")
	call(t, "GET", ts.URL+"/addItem?name=Washer&token="+token, "", nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "extra.csv")
	fw.Write([]byte("name,size,count\nNut,M4,20\nSpring,,3\n"))
	mw.Close()

	req, _ := http.NewRequest("POST", ts.URL+"/appendFile", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}

	_, out := call(t, "GET", ts.URL+"/findAll", "", nil)
	if dataLen(out) != 3 {
		t.Errorf("expected appended rows next to existing item, got %v", out)
	}
}
