package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"almacena/backend/internal/domain"
	"almacena/backend/internal/extract"
	"almacena/backend/internal/service"
	"almacena/backend/internal/store/memory"
)

// docReaderStub returns canned text instead of running the pdf/ocr pipeline.
type docReaderStub struct {
	text string
	err  error
}

func (s *docReaderStub) Text(_ context.Context, _ string, _ []byte) (string, error) {
	return s.text, s.err
}

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	reader := &docReaderStub{text: "Remito N° RM-2024-001\nFecha: 15/03/2024\n3 Filtro de Aire 15.75\n"}
	parser := extract.New(extract.DefaultConfig())
	svc := service.New(repo, reader, parser, nil, 0, "main-warehouse")
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", 10<<20)
}

func loginAs(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login as %s failed, status %d (body: %s)", username, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

// fetchCSRFToken calls the CSRF token endpoint and returns the token string.
func fetchCSRFToken(t *testing.T, api *API) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("csrf-token endpoint returned status %d", res.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode csrf-token response failed: %v", err)
	}
	tok := payload["csrf_token"]
	if strings.TrimSpace(tok) == "" {
		t.Fatalf("expected non-empty csrf_token in response")
	}
	return tok
}

func authedRequest(t *testing.T, api *API, method, path string, payload any, token, csrf string) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateProductForbiddenForOperator(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "operator", "operator123")
	csrf := fetchCSRFToken(t, api)

	res := authedRequest(t, api, http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{
		Name: "Amortiguador Delantero",
	}, token, csrf)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator create, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestMutationWithoutCSRFRejected(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")

	res := authedRequest(t, api, http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{
		Name: "Amortiguador Delantero",
	}, token, "")

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", res.Code)
	}
}

func TestReceiptConfirmFlowMovesStock(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	createRes := authedRequest(t, api, http.MethodPost, "/api/v1/receipts", domain.ReceiptCreateRequest{
		WarehouseID: "main-warehouse",
		Items: []domain.ReceiptItemRequest{
			{Name: "Filtro de Aire", Quantity: 3},
		},
	}, token, csrf)
	if createRes.Code != http.StatusCreated {
		t.Fatalf("create receipt: expected 201, got %d (body: %s)", createRes.Code, createRes.Body.String())
	}

	var created struct {
		Receipt domain.Receipt `json:"receipt"`
	}
	if err := json.NewDecoder(createRes.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Receipt.Status != domain.ReceiptStatusPending {
		t.Fatalf("expected Pending receipt, got %s", created.Receipt.Status)
	}

	confirmRes := authedRequest(t, api, http.MethodPost, "/api/v1/receipts/"+created.Receipt.ID+"/confirm", nil, token, csrf)
	if confirmRes.Code != http.StatusOK {
		t.Fatalf("confirm receipt: expected 200, got %d (body: %s)", confirmRes.Code, confirmRes.Body.String())
	}

	var confirmed struct {
		Receipt domain.Receipt `json:"receipt"`
	}
	if err := json.NewDecoder(confirmRes.Body).Decode(&confirmed); err != nil {
		t.Fatalf("decode confirm response: %v", err)
	}
	if confirmed.Receipt.Status != domain.ReceiptStatusConfirmed {
		t.Fatalf("expected Confirmed receipt, got %s", confirmed.Receipt.Status)
	}

	stockRes := authedRequest(t, api, http.MethodGet, "/api/v1/stock?warehouse_id=main-warehouse", nil, token, "")
	if stockRes.Code != http.StatusOK {
		t.Fatalf("stock query: expected 200, got %d", stockRes.Code)
	}
	var stock domain.StockResponse
	if err := json.NewDecoder(stockRes.Body).Decode(&stock); err != nil {
		t.Fatalf("decode stock response: %v", err)
	}
	for _, level := range stock.Levels {
		if level.ProductName == "Filtro de Aire" {
			if level.Quantity != 53 {
				t.Fatalf("expected stock 53 after confirm, got %d", level.Quantity)
			}
			return
		}
	}
	t.Fatalf("product not found in stock response")
}

func TestReceiptExtractUpload(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "operator", "operator123")
	csrf := fetchCSRFToken(t, api)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "remito.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 fake body")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var result domain.ExtractionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode extraction result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success extraction result")
	}
	if result.Data.OrderID != "RM-2024-001" {
		t.Fatalf("expected order id RM-2024-001, got %q", result.Data.OrderID)
	}
	if len(result.Data.Products) != 1 || result.Data.Products[0].Name != "Filtro de Aire" {
		t.Fatalf("unexpected extracted products: %+v", result.Data.Products)
	}
}

func TestInventoryReportFormats(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")

	csvRes := authedRequest(t, api, http.MethodGet, "/api/v1/reports/inventory?format=csv", nil, token, "")
	if csvRes.Code != http.StatusOK {
		t.Fatalf("csv report: expected 200, got %d", csvRes.Code)
	}
	if ct := csvRes.Header().Get("Content-Type"); !strings.Contains(ct, "text/csv") {
		t.Fatalf("expected text/csv content type, got %q", ct)
	}
	if !strings.Contains(csvRes.Body.String(), "Product ID") {
		t.Fatalf("expected header row in CSV output")
	}

	xlsxRes := authedRequest(t, api, http.MethodGet, "/api/v1/reports/inventory?format=xlsx", nil, token, "")
	if xlsxRes.Code != http.StatusOK {
		t.Fatalf("xlsx report: expected 200, got %d", xlsxRes.Code)
	}
	if ct := xlsxRes.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("expected xlsx content type, got %q", ct)
	}

	jsonRes := authedRequest(t, api, http.MethodGet, "/api/v1/reports/inventory", nil, token, "")
	if jsonRes.Code != http.StatusOK {
		t.Fatalf("json report: expected 200, got %d", jsonRes.Code)
	}
	var stock domain.StockResponse
	if err := json.NewDecoder(jsonRes.Body).Decode(&stock); err != nil {
		t.Fatalf("decode json report: %v", err)
	}
	if len(stock.Levels) == 0 {
		t.Fatalf("expected seeded stock levels in report")
	}
}

func TestReportsForbiddenForOperator(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "operator", "operator123")

	res := authedRequest(t, api, http.MethodGet, "/api/v1/reports/inventory", nil, token, "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator report access, got %d", res.Code)
	}
}

func TestQRCodeImageEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	createRes := authedRequest(t, api, http.MethodPost, "/api/v1/qr-codes", domain.QRCodeCreateRequest{
		EntityType: domain.QREntityWarehouse,
		EntityID:   "main-warehouse",
		Label:      "Depósito Central",
	}, token, csrf)
	if createRes.Code != http.StatusCreated {
		t.Fatalf("create qr code: expected 201, got %d (body: %s)", createRes.Code, createRes.Body.String())
	}

	var created struct {
		QRCode domain.QRCode `json:"qr_code"`
	}
	if err := json.NewDecoder(createRes.Body).Decode(&created); err != nil {
		t.Fatalf("decode qr create response: %v", err)
	}

	imageRes := authedRequest(t, api, http.MethodGet, "/api/v1/qr-codes/"+created.QRCode.Token+"/image", nil, token, "")
	if imageRes.Code != http.StatusOK {
		t.Fatalf("qr image: expected 200, got %d", imageRes.Code)
	}
	if ct := imageRes.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(imageRes.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected PNG magic bytes in response")
	}

	resolveRes := authedRequest(t, api, http.MethodGet, "/api/v1/qr-codes/resolve/"+created.QRCode.Token, nil, token, "")
	if resolveRes.Code != http.StatusOK {
		t.Fatalf("qr resolve: expected 200, got %d", resolveRes.Code)
	}
}
